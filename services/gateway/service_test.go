package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"reportplane/pkg/errutil"
	"reportplane/services/testutil"
)

type order struct {
	ID     uint   `gorm:"primaryKey"`
	Status string `gorm:"type:varchar(20)"`
	Note   string `gorm:"type:text"`
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &order{})
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&order{Status: "open", Note: "n"}).Error)
	}

	return NewService(Params{DB: db}), db
}

func requireSecurityRejection(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, errutil.StatusSecurity, errutil.CodeOf(err))
}

func TestRunReadOnly_Select(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.RunReadOnly(context.Background(), "SELECT id, status FROM orders", 100)
	require.NoError(t, err)
	require.Equal(t, 5, res.RowCount)
	require.Equal(t, []string{"id", "status"}, res.Columns)
	require.Len(t, res.Rows, 5)
}

func TestRunReadOnly_AppendsDefaultLimit(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.RunReadOnly(context.Background(), "SELECT id FROM orders", 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowCount)

	// Trailing semicolon is trimmed before the limit is appended.
	res, err = svc.RunReadOnly(context.Background(), "SELECT id FROM orders;", 3)
	require.NoError(t, err)
	require.Equal(t, 3, res.RowCount)
}

func TestRunReadOnly_KeepsExplicitLimit(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.RunReadOnly(context.Background(), "SELECT id FROM orders LIMIT 1", 100)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
}

func TestRunReadOnly_CapsExplicitLimitAboveDefault(t *testing.T) {
	svc, _ := newTestService(t)

	// An explicit LIMIT larger than the cap does not bypass it.
	res, err := svc.RunReadOnly(context.Background(), "SELECT id FROM orders LIMIT 5", 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowCount)
	require.Len(t, res.Rows, 2)
}

func TestRunReadOnly_ZeroRowsHaveEmptyColumns(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.RunReadOnly(context.Background(), "SELECT id FROM orders WHERE id > 999", 10)
	require.NoError(t, err)
	require.Equal(t, 0, res.RowCount)
	require.Empty(t, res.Columns)
}

func TestRunReadOnly_WithClause(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.RunReadOnly(context.Background(),
		"WITH open_orders AS (SELECT id FROM orders WHERE status = 'open') SELECT id FROM open_orders", 10)
	require.NoError(t, err)
	require.Equal(t, 5, res.RowCount)
}

func TestRunReadOnly_RejectsMultiStatement(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RunReadOnly(context.Background(), "SELECT 1; DELETE FROM orders", 10)
	requireSecurityRejection(t, err)
}

func TestRunReadOnly_RejectsNonSelect(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RunReadOnly(context.Background(), "UPDATE orders SET status='shipped' WHERE id=5", 10)
	requireSecurityRejection(t, err)

	_, err = svc.RunReadOnly(context.Background(), "ALTER TABLE orders ADD COLUMN y INT", 10)
	requireSecurityRejection(t, err)
}

func TestRunReadOnly_RejectsSleepInsideSelect(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RunReadOnly(context.Background(), "SELECT * FROM orders WHERE id = (SELECT SLEEP(5))", 10)
	requireSecurityRejection(t, err)
}

func TestRunReadOnly_RejectsBannedKeywords(t *testing.T) {
	svc, _ := newTestService(t)

	for _, q := range []string{
		"SELECT * FROM orders UNION SELECT * FROM mysql.user INTO OUTFILE '/tmp/x'",
		"SELECT 1 FROM dual WHERE 1=1 PROCEDURE ANALYSE(EXTRACTVALUE(1, 'set'), 1) -- x\nSET @a=1",
		"SELECT load_file('/etc/passwd')",
		"SELECT * FROM orders; -- \nDROP TABLE orders",
	} {
		_, err := svc.RunReadOnly(context.Background(), q, 10)
		requireSecurityRejection(t, err)
	}
}

func TestRunReadOnly_AllowsKeywordsInsideLiterals(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Create(&order{Status: "open", Note: "drop table users"}).Error)

	res, err := svc.RunReadOnly(context.Background(),
		"SELECT id FROM orders WHERE note = 'drop table users'", 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
}

func TestRunWrite_AcceptsUpdate(t *testing.T) {
	svc, db := newTestService(t)

	res, err := svc.RunWrite(context.Background(), "UPDATE orders SET status='shipped' WHERE id=5")
	require.NoError(t, err)
	require.True(t, res.OK)
	require.NotNil(t, res.AffectedRows)
	require.EqualValues(t, 1, *res.AffectedRows)

	var o order
	require.NoError(t, db.First(&o, 5).Error)
	require.Equal(t, "shipped", o.Status)
}

func TestRunWrite_RejectsSelect(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RunWrite(context.Background(), "SELECT * FROM orders")
	requireSecurityRejection(t, err)
}

func TestRunWrite_RejectsDDL(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RunWrite(context.Background(), "ALTER TABLE orders ADD COLUMN y INT")
	requireSecurityRejection(t, err)

	_, err = svc.RunWrite(context.Background(), "DELETE FROM orders; DROP TABLE orders")
	requireSecurityRejection(t, err)
}

func TestRunWrite_ExecutionErrorIsNotSecurity(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RunWrite(context.Background(), "DELETE FROM no_such_table WHERE id=1")
	require.Error(t, err)
	require.Equal(t, errutil.StatusExecution, errutil.CodeOf(err))
}
