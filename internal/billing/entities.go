// Package billing is a sample application database: two bill tables, their
// version history and the hooks that create and upgrade them.
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is one bill header.
type Bill struct {
	Id              int32           `sqlite:"Id,pk,autoincrement"`
	BillGuid        string          `sqlite:"BillGuid,notnull,maxlen=64,index=idx_Bill_NetBillId_State:1,unique=idx_Bill_NetBillId:1"`
	EmployeeId      int             `sqlite:"EmployeeId,default=0"`
	DiscountPayment decimal.Decimal `sqlite:"DiscountPayment,type=DECIMAL(19,4)"`
	State           int             `sqlite:"State,notnull,default=0,collate=BINARY,index=idx_Bill_NetBillId_State:2,index=idx_Bill_State:1"`
	BillType        int             `sqlite:"BillType,notnull,default=0"`
}

func (Bill) TableName() string { return "t_test_bill" }

// BillLine is one line of a bill, keyed by the bill and its line number.
type BillLine struct {
	BillGuid  string          `sqlite:"BillGuid,pk=1,maxlen=64"`
	LineNo    int             `sqlite:"LineNo,pk=2"`
	Sku       string          `sqlite:"Sku,maxlen=32"`
	Quantity  int             `sqlite:"Quantity,notnull,default=1"`
	Amount    decimal.Decimal `sqlite:"Amount,type=DECIMAL(19,4)"`
	CreatedAt time.Time       `sqlite:"CreatedAt"`
}

func (BillLine) TableName() string { return "t_test_bill_line" }

// Entities lists the mapped types in creation order.
func Entities() []any {
	return []any{Bill{}, BillLine{}}
}
