package engine

import (
	"bytes"
	"context"
	"log"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sqlite-init/internal/ddl"
	"sqlite-init/internal/dialect"
	"sqlite-init/internal/gateway"
	"sqlite-init/internal/schema"

	_ "modernc.org/sqlite"
)

type parent struct {
	Id    int32     `sqlite:"Id,pk,autoincrement"`
	Code  string    `sqlite:"Code,notnull,unique,maxlen=8"`
	Email string    `sqlite:"Email,maxlen=64"`
	When  time.Time `sqlite:"CreatedAt"`
	Price decimal.Decimal
}

func (parent) TableName() string { return "t_parent" }

type child struct {
	Code   string `sqlite:"Code,pk=1"`
	LineNo int    `sqlite:"LineNo,pk=2"`
	Qty    int
}

func (child) TableName() string { return "t_child" }

type tiny struct {
	Id   int8 `sqlite:"Id,pk,autoincrement"`
	Name string
}

func setup(t *testing.T, entities ...any) (gateway.Executor, []*schema.EntityDescriptor) {
	t.Helper()
	g, err := gateway.Open("sqlite", filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	ex := g.With(gateway.KeepOpen)

	reg := schema.NewRegistry(schema.Options{})
	var descs []*schema.EntityDescriptor
	for _, e := range entities {
		d, err := reg.Describe(e)
		if err != nil {
			t.Fatalf("describe: %v", err)
		}
		descs = append(descs, d)
	}
	if _, err := ddl.NewMapper(&dialect.SQLiteDialect{}).SyncAll(context.Background(), ex, descs); err != nil {
		t.Fatalf("sync: %v", err)
	}
	return ex, descs
}

func quiet() Option {
	return WithLogger(log.New(&bytes.Buffer{}, "", 0))
}

func TestPumpFillsAndLinksTables(t *testing.T) {
	ctx := context.Background()
	ex, descs := setup(t, parent{}, child{})
	d := &dialect.SQLiteDialect{}

	progress := 0
	results, err := Pump(ctx, ex, d, descs, 20, func() { progress++ }, quiet())
	if err != nil {
		t.Fatalf("pump: %v", err)
	}
	if len(results) != 2 || progress != 40 {
		t.Fatalf("results = %+v, progress = %d", results, progress)
	}
	for _, r := range results {
		if r.Status != "OK" || r.Actual != 20 {
			t.Fatalf("result = %+v", r)
		}
	}

	orphans, err := ex.Scalar(ctx, `SELECT COUNT(*) FROM "t_child" c WHERE NOT EXISTS (SELECT 1 FROM "t_parent" p WHERE p."Code" = c."Code")`)
	if err != nil {
		t.Fatalf("orphan check: %v", err)
	}
	if orphans.(int64) != 0 {
		t.Fatalf("%d child rows reference no parent", orphans)
	}

	verified := VerifyInjection(ctx, ex, d, results)
	for _, r := range verified {
		if r.Status != "VERIFIED_OK" {
			t.Fatalf("verified = %+v", r)
		}
	}

	cleaned, err := Clean(ctx, ex, d, descs, quiet())
	if err != nil || cleaned != 2 {
		t.Fatalf("clean = %d, %v", cleaned, err)
	}
	verified = VerifyInjection(ctx, ex, d, results)
	if verified[0].Actual != 0 || !strings.HasPrefix(verified[0].Status, "PARTIAL") {
		t.Fatalf("after clean = %+v", verified[0])
	}
}

func TestPumpReportsMissingTable(t *testing.T) {
	ctx := context.Background()
	ex, _ := setup(t)
	d, err := schema.NewRegistry(schema.Options{}).Describe(parent{})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}

	results, err := Pump(ctx, ex, &dialect.SQLiteDialect{}, []*schema.EntityDescriptor{d}, 5, nil, quiet())
	if err != nil {
		t.Fatalf("pump: %v", err)
	}
	if results[0].Status != "ERROR" || results[0].ErrorMsg == "" {
		t.Fatalf("result = %+v", results[0])
	}
}

func TestKeyPoolLogsUnreadableTable(t *testing.T) {
	ctx := context.Background()
	ex, descs := setup(t, parent{})
	if _, err := ex.Exec(ctx, `DROP TABLE "t_parent"`); err != nil {
		t.Fatalf("drop: %v", err)
	}

	var buf bytes.Buffer
	pool := map[string][]any{"code": {"keep"}}
	updateKeyPool(ctx, ex, &dialect.SQLiteDialect{}, descs[0], pool, log.New(&buf, "", 0))

	if !strings.Contains(buf.String(), "key pool for t_parent.Code not loaded") {
		t.Fatalf("log = %q", buf.String())
	}
	if len(pool["code"]) != 1 {
		t.Fatalf("pool changed on failure: %v", pool["code"])
	}
}

func TestCalculateMaxInsertCount(t *testing.T) {
	d, err := schema.NewRegistry(schema.Options{}).Describe(tiny{})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	logger := log.New(&bytes.Buffer{}, "", 0)
	if got := calculateMaxInsertCount(d, 1000, logger); got != 127 {
		t.Fatalf("max = %d, want 127", got)
	}
	if got := calculateMaxInsertCount(d, 10, logger); got != 10 {
		t.Fatalf("max = %d, want 10", got)
	}
}

func TestGenerateValue(t *testing.T) {
	reg := schema.NewRegistry(schema.Options{})
	d, err := reg.Describe(parent{})
	if err != nil {
		t.Fatalf("describe: %v", err)
	}

	for i := 0; i < 50; i++ {
		code := GenerateValue(d.Column("Code"), false).(string)
		if n := len([]rune(code)); n == 0 || n > 8 {
			t.Fatalf("code %q exceeds max length", code)
		}
	}
	if email := GenerateValue(d.Column("Email"), false).(string); !strings.Contains(email, "@") {
		t.Fatalf("email = %q", email)
	}
	if _, err := time.Parse(DateTimeLayout, GenerateValue(d.Column("CreatedAt"), false).(string)); err != nil {
		t.Fatalf("datetime: %v", err)
	}
	if _, ok := GenerateValue(d.Column("CreatedAt"), true).(int64); !ok {
		t.Fatal("ticks should be int64")
	}
	if _, ok := GenerateValue(d.Column("Price"), false).(decimal.Decimal); !ok {
		t.Fatal("decimal column should produce decimal.Decimal")
	}

	guid := &schema.ColumnDescriptor{Name: "BillGuid", Semantic: schema.TypeUUID}
	if _, err := uuid.Parse(GenerateValue(guid, false).(string)); err != nil {
		t.Fatalf("uuid: %v", err)
	}
	text := &schema.ColumnDescriptor{Name: "OrderGuid", Semantic: schema.TypeText, MaxLength: 36}
	if _, err := uuid.Parse(GenerateValue(text, false).(string)); err != nil {
		t.Fatalf("guid-named text: %v", err)
	}
}

func TestTicks(t *testing.T) {
	if got := Ticks(time.Unix(0, 0)); got != ticksAtUnixEpoch {
		t.Fatalf("ticks at epoch = %d", got)
	}
	if got := Ticks(time.Unix(1, 0)) - Ticks(time.Unix(0, 0)); got != 10_000_000 {
		t.Fatalf("ticks per second = %d", got)
	}
}

func TestTypeMaxValue(t *testing.T) {
	if typeMaxValue(reflect.Int16) != 32767 || typeMaxValue(reflect.Int) <= 2147483647 {
		t.Fatal("unexpected type limits")
	}
}
