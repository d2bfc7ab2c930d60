package ddl_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"sqlite-init/internal/dberr"
	"sqlite-init/internal/ddl"
	"sqlite-init/internal/dialect"
	"sqlite-init/internal/gateway"
	"sqlite-init/internal/schema"

	_ "modernc.org/sqlite"
)

type widget struct {
	Id    int     `sqlite:"Id,pk,autoincrement"`
	Name  string  `sqlite:"Name,notnull,default=x,maxlen=64"`
	Price float64 `sqlite:"Price"`
}

func (widget) TableName() string { return "t_widget" }

type line struct {
	BillGuid uuid.UUID `sqlite:"BillGuid,pk=1"`
	LineNo   int       `sqlite:"LineNo,pk=2"`
	Amount   float64
}

func (line) TableName() string { return "t_line" }

type orderLine struct {
	Order int `sqlite:"Order,pk=1"`
	Group int `sqlite:"Group,pk=2"`
	Qty   int
}

func (orderLine) TableName() string { return "t_order_line" }

type diffV2 struct {
	Id   int    `sqlite:"id,pk"`
	Name string `sqlite:"name"`
	X    int    `sqlite:"X"`
	Y    string `sqlite:"Y"`
}

func (diffV2) TableName() string { return "t_diff" }

type indexed struct {
	Id    int    `sqlite:"Id,pk,autoincrement"`
	Code  string `sqlite:"Code,unique=ux_code"`
	State int    `sqlite:"State,index=ix_state:1"`
	Kind  int    `sqlite:"Kind,index=ix_state:2"`
}

func (indexed) TableName() string { return "t_indexed" }

type strict struct {
	Id       int    `sqlite:"id,pk"`
	Required string `sqlite:"Required,notnull"`
	Optional string `sqlite:"Optional"`
}

func (strict) TableName() string { return "t_strict" }

func describe(t *testing.T, entity any) *schema.EntityDescriptor {
	t.Helper()
	d, err := schema.NewRegistry(schema.Options{}).Describe(entity)
	if err != nil {
		t.Fatalf("describe %T: %v", entity, err)
	}
	return d
}

func openExecutor(t *testing.T) gateway.Executor {
	t.Helper()
	g, err := gateway.Open("sqlite", filepath.Join(t.TempDir(), "ddl.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g.With(gateway.KeepOpen)
}

func TestCreateTableStatement(t *testing.T) {
	got := ddl.CreateTableStatement(describe(t, widget{}))
	want := "CREATE TABLE IF NOT EXISTS \"t_widget\"(\n" +
		"\"Id\" INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,\n" +
		"\"Name\" VARCHAR(64) NOT NULL DEFAULT 'x',\n" +
		"\"Price\" DOUBLE\n" +
		");"
	if got != want {
		t.Fatalf("create statement:\n%s\nwant:\n%s", got, want)
	}
}

func TestCompositeKeyUsesTrailingClause(t *testing.T) {
	d := describe(t, line{})
	if got := ddl.PrimaryKeyClause(d); got != "PRIMARY KEY(BillGuid,LineNo)" {
		t.Fatalf("pk clause = %q", got)
	}
	stmt := ddl.CreateTableStatement(d)
	if strings.Contains(stmt, "\"BillGuid\" VARCHAR(36) PRIMARY KEY") {
		t.Fatalf("composite key columns must not declare PRIMARY KEY inline:\n%s", stmt)
	}
	if !strings.HasSuffix(stmt, ",\nPRIMARY KEY(BillGuid,LineNo)\n);") {
		t.Fatalf("missing trailing key clause:\n%s", stmt)
	}

	ex := openExecutor(t)
	if _, err := ex.Exec(context.Background(), stmt); err != nil {
		t.Fatalf("engine rejected statement: %v", err)
	}

	t.Run("keyword columns are quoted", func(t *testing.T) {
		kd := describe(t, orderLine{})
		if got := ddl.PrimaryKeyClause(kd); got != `PRIMARY KEY("Order","Group")` {
			t.Fatalf("pk clause = %q", got)
		}
		res, err := ddl.NewMapper(&dialect.SQLiteDialect{}).SyncTable(context.Background(), ex, kd)
		if err != nil {
			t.Fatalf("sync: %v", err)
		}
		if res.Table != "t_order_line" {
			t.Fatalf("synced table = %q", res.Table)
		}
		if _, err := ex.Exec(context.Background(), `INSERT INTO "t_order_line"("Order","Group","Qty") VALUES (1, 1, 5)`); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := ex.Exec(context.Background(), `INSERT INTO "t_order_line"("Order","Group","Qty") VALUES (1, 1, 6)`); err == nil {
			t.Fatal("duplicate composite key accepted")
		}
	})
}

func TestColumnDeclEscapesQuotedDefault(t *testing.T) {
	v := "it's"
	c := &schema.ColumnDescriptor{Name: "Note", StorageType: "VARCHAR(140)", IsNullable: true, DefaultValue: &v, QuoteDefault: true, Collation: "NOCASE"}
	if got := ddl.ColumnDecl(c, true); got != `"Note" VARCHAR(140) DEFAULT 'it''s' COLLATE NOCASE` {
		t.Fatalf("decl = %q", got)
	}
}

func TestAlterStatementsAreAdditive(t *testing.T) {
	ctx := context.Background()
	ex := openExecutor(t)
	d := &dialect.SQLiteDialect{}

	if _, err := ex.Exec(ctx, `CREATE TABLE "t_diff"("ID" INTEGER PRIMARY KEY, "NAME" TEXT)`); err != nil {
		t.Fatalf("seed table: %v", err)
	}
	live, err := schema.Analyze(ctx, ex, d, "t_diff")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	got := ddl.AlterAddColumnStatements(describe(t, diffV2{}), live)
	want := []string{
		`ALTER TABLE "t_diff" ADD COLUMN "X" INTEGER`,
		`ALTER TABLE "t_diff" ADD COLUMN "Y" VARCHAR(140)`,
	}
	if len(got) != len(want) {
		t.Fatalf("statements = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statement %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIndexStatements(t *testing.T) {
	got := ddl.IndexStatements(describe(t, indexed{}))
	want := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS "ux_code" ON "t_indexed"("Code")`,
		`CREATE INDEX IF NOT EXISTS "ix_state" ON "t_indexed"("State","Kind")`,
	}
	if len(got) != len(want) {
		t.Fatalf("statements = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d = %q, want %q", i, got[i], want[i])
		}
	}
	if got := ddl.DropIndexStatement("ix_state"); got != `DROP INDEX IF EXISTS "ix_state"` {
		t.Fatalf("drop = %q", got)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ex := openExecutor(t)
	d := &dialect.SQLiteDialect{}
	m := ddl.NewMapper(d)
	descs := []*schema.EntityDescriptor{describe(t, widget{}), describe(t, indexed{}), describe(t, line{})}

	for i := 0; i < 2; i++ {
		results, err := m.SyncAll(ctx, ex, descs)
		if err != nil {
			t.Fatalf("sync pass %d: %v", i, err)
		}
		for _, r := range results {
			if len(r.AddedColumns) != 0 {
				t.Fatalf("pass %d: %s added %v", i, r.Table, r.AddedColumns)
			}
		}
	}

	tables, err := schema.ListTables(ctx, ex, d)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if strings.Join(tables, ",") != "t_indexed,t_line,t_widget" {
		t.Fatalf("tables = %v", tables)
	}

	plan, err := m.Plan(ctx, ex, describe(t, indexed{}))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for _, stmt := range plan {
		if !strings.HasPrefix(stmt, "CREATE ") || !strings.Contains(stmt, "INDEX IF NOT EXISTS") {
			t.Fatalf("synced table should only plan idempotent index statements, got %q", stmt)
		}
	}

	if _, err := ex.Exec(ctx, `INSERT INTO "t_indexed"("Code") VALUES ('a')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := ex.Exec(ctx, `INSERT INTO "t_indexed"("Code") VALUES ('a')`); err == nil {
		t.Fatal("unique index was not created")
	}
}

func TestSyncAddsMissingColumns(t *testing.T) {
	ctx := context.Background()
	ex := openExecutor(t)
	m := ddl.NewMapper(&dialect.SQLiteDialect{})

	if _, err := ex.Exec(ctx, `CREATE TABLE "t_diff"("id" INTEGER PRIMARY KEY, "name" TEXT)`); err != nil {
		t.Fatalf("seed table: %v", err)
	}
	if _, err := ex.Exec(ctx, `INSERT INTO "t_diff"("name") VALUES ('kept')`); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	plan, err := m.Plan(ctx, ex, describe(t, diffV2{}))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan) != 2 || !strings.HasPrefix(plan[0], "ALTER TABLE") {
		t.Fatalf("plan = %q", plan)
	}

	res, err := m.SyncTable(ctx, ex, describe(t, diffV2{}))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if strings.Join(res.AddedColumns, ",") != "X,Y" {
		t.Fatalf("added = %v", res.AddedColumns)
	}

	v, err := ex.Scalar(ctx, `SELECT "name" FROM "t_diff" WHERE "X" IS NULL`)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if v != "kept" {
		t.Fatalf("existing row = %v", v)
	}
}

func TestColumnErrorPolicy(t *testing.T) {
	ctx := context.Background()
	seed := func(t *testing.T) gateway.Executor {
		ex := openExecutor(t)
		if _, err := ex.Exec(ctx, `CREATE TABLE "t_strict"("id" INTEGER PRIMARY KEY)`); err != nil {
			t.Fatalf("seed table: %v", err)
		}
		return ex
	}

	t.Run("abort", func(t *testing.T) {
		ex := seed(t)
		_, err := ddl.NewMapper(&dialect.SQLiteDialect{}).SyncTable(ctx, ex, describe(t, strict{}))
		if !errors.Is(err, dberr.ErrColumnMigration) {
			t.Fatalf("err = %v, want column migration error", err)
		}
		if dberr.KindOf(err).Fatal() {
			t.Fatal("column migration errors are not fatal on their own")
		}
	})

	t.Run("log", func(t *testing.T) {
		ex := seed(t)
		var buf bytes.Buffer
		m := ddl.NewMapper(&dialect.SQLiteDialect{},
			ddl.WithColumnErrorPolicy(ddl.ColumnErrorsLog),
			ddl.WithLogger(log.New(&buf, "", 0)))

		res, err := m.SyncTable(ctx, ex, describe(t, strict{}))
		if err != nil {
			t.Fatalf("sync: %v", err)
		}
		if strings.Join(res.FailedColumns, ",") != "Required" || strings.Join(res.AddedColumns, ",") != "Optional" {
			t.Fatalf("result = %+v", res)
		}
		if !strings.Contains(buf.String(), "Required") {
			t.Fatalf("failure was not logged: %q", buf.String())
		}
	})
}

func TestParseColumnErrorPolicy(t *testing.T) {
	for in, want := range map[string]ddl.ColumnErrorPolicy{"": ddl.ColumnErrorsAbort, "abort": ddl.ColumnErrorsAbort, "log": ddl.ColumnErrorsLog} {
		got, err := ddl.ParseColumnErrorPolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseColumnErrorPolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ddl.ParseColumnErrorPolicy("ignore"); !errors.Is(err, dberr.ErrConfiguration) {
		t.Fatalf("err = %v", err)
	}
}

func TestDropIndexIfExists(t *testing.T) {
	ctx := context.Background()
	ex := openExecutor(t)
	if _, err := ddl.NewMapper(&dialect.SQLiteDialect{}).SyncTable(ctx, ex, describe(t, indexed{})); err != nil {
		t.Fatalf("sync: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := ddl.DropIndexIfExists(ctx, ex, "ix_state"); err != nil {
			t.Fatalf("drop %d: %v", i, err)
		}
	}
	v, err := ex.Scalar(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'ix_state'`)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if v.(int64) != 0 {
		t.Fatal("index still present")
	}
}
