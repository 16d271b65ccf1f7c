package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finledger/internal/core"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour a repository speaks.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

func (d Dialect) driverName() string {
	return string(d)
}

const timeLayout = time.RFC3339Nano

// SQLRepository implements Store on top of database/sql. Statements use
// ANSI SQL except for upserts, which are built per dialect.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(DialectSQLite, dbPath)
}

func NewMySQLRepository(dsn string) (*SQLRepository, error) {
	return open(DialectMySQL, dsn)
}

func open(dialect Dialect, dsn string) (*SQLRepository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dialect == DialectSQLite {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{db: db, dialect: dialect}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// upsert builds an insert that overwrites every non-key column on conflict.
func (r *SQLRepository) upsert(table, key string, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	var sets []string
	for _, c := range cols {
		if c == key || c == "created_at" {
			continue
		}
		if r.dialect == DialectMySQL {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		} else {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
	if r.dialect == DialectMySQL {
		return stmt + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return stmt + fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET ", key) + strings.Join(sets, ", ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// Expenses

const expenseColumns = "id, owner_id, amount, category, expense_date, description, notes, attachment, created_at, updated_at"

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                core.Expense
		created, updated string
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &e.Amount, &e.Category, &e.Date, &e.Description, &e.Notes, &e.Attachment, &created, &updated); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return core.Expense{}, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (r *SQLRepository) queryExpenses(ctx context.Context, where string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE "+where+" ORDER BY expense_date, created_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLRepository) ExpensesOf(ctx context.Context, ownerID string) ([]core.Expense, error) {
	return r.queryExpenses(ctx, "owner_id = ?", ownerID)
}

func (r *SQLRepository) ExpensesBetween(ctx context.Context, ownerID string, from, to core.Date) ([]core.Expense, error) {
	return r.queryExpenses(ctx, "owner_id = ? AND expense_date >= ? AND expense_date <= ?", ownerID, from.String(), to.String())
}

func (r *SQLRepository) ExpensesByCategory(ctx context.Context, ownerID, category string) ([]core.Expense, error) {
	return r.queryExpenses(ctx, "owner_id = ? AND category = ?", ownerID, category)
}

func (r *SQLRepository) ExpenseByID(ctx context.Context, id, ownerID string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ? AND owner_id = ?", id, ownerID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.NotFoundError("expense", id)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return e, nil
}

func (r *SQLRepository) SaveExpense(ctx context.Context, e core.Expense) error {
	stmt := r.upsert("expenses", "id", strings.Split(expenseColumns, ", "))
	_, err := r.db.ExecContext(ctx, stmt,
		e.ID, e.OwnerID, e.Amount, e.Category, e.Date, e.Description, e.Notes, e.Attachment,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved",
		"id", e.ID,
		"amount", e.Amount.String(),
		"category", e.Category,
		"date", e.Date.String())
	return nil
}

func (r *SQLRepository) DeleteExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ? AND owner_id = ?", e.ID, e.OwnerID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireAffected(res, "expense", e.ID)
}

func (r *SQLRepository) CategoriesOf(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT category FROM expenses WHERE owner_id = ? ORDER BY category", ownerID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Budgets

const budgetColumns = "id, owner_id, month, year, monthly_limit, created_at, updated_at"

func scanBudget(s scanner) (core.Budget, error) {
	var (
		b                core.Budget
		created, updated string
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &b.Month, &b.Year, &b.MonthlyLimit, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.CreatedAt, err = parseTime(created); err != nil {
		return core.Budget{}, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (r *SQLRepository) BudgetOf(ctx context.Context, ownerID string, month, year int) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE owner_id = ? AND month = ? AND year = ?", ownerID, month, year)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.NotFoundError("budget", core.Period{Year: year, Month: month}.String())
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLRepository) SaveBudget(ctx context.Context, b core.Budget) error {
	stmt := r.upsert("budgets", "id", strings.Split(budgetColumns, ", "))
	_, err := r.db.ExecContext(ctx, stmt,
		b.ID, b.OwnerID, b.Month, b.Year, b.MonthlyLimit, formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save budget: %w", err)
	}
	return nil
}

func (r *SQLRepository) BudgetsFor(ctx context.Context, month, year int) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets WHERE month = ? AND year = ? ORDER BY owner_id", month, year)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	out := make([]core.Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Savings goals

const goalColumns = "id, owner_id, name, description, target_amount, current_amount, target_date, icon, color, state, created_at, updated_at"

func scanGoal(s scanner) (core.SavingsGoal, error) {
	var (
		g                core.SavingsGoal
		created, updated string
	)
	if err := s.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Description, &g.TargetAmount, &g.CurrentAmount,
		&g.TargetDate, &g.Icon, &g.Color, &g.State, &created, &updated); err != nil {
		return core.SavingsGoal{}, err
	}
	var err error
	if g.CreatedAt, err = parseTime(created); err != nil {
		return core.SavingsGoal{}, err
	}
	if g.UpdatedAt, err = parseTime(updated); err != nil {
		return core.SavingsGoal{}, err
	}
	return g, nil
}

func (r *SQLRepository) SavingsGoalsOf(ctx context.Context, ownerID string) ([]core.SavingsGoal, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+goalColumns+" FROM savings_goals WHERE owner_id = ? ORDER BY created_at, id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	out := make([]core.SavingsGoal, 0)
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLRepository) SavingsGoalByID(ctx context.Context, id, ownerID string) (core.SavingsGoal, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+goalColumns+" FROM savings_goals WHERE id = ? AND owner_id = ?", id, ownerID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SavingsGoal{}, core.NotFoundError("savings goal", id)
	}
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("get goal by id: %w", err)
	}
	return g, nil
}

func (r *SQLRepository) SaveSavingsGoal(ctx context.Context, g core.SavingsGoal) error {
	stmt := r.upsert("savings_goals", "id", strings.Split(goalColumns, ", "))
	_, err := r.db.ExecContext(ctx, stmt,
		g.ID, g.OwnerID, g.Name, g.Description, g.TargetAmount, g.CurrentAmount, g.TargetDate,
		g.Icon, g.Color, string(g.State), formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteSavingsGoal(ctx context.Context, g core.SavingsGoal) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM savings_goals WHERE id = ? AND owner_id = ?", g.ID, g.OwnerID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return requireAffected(res, "savings goal", g.ID)
}

// Split bills

const billColumns = "id, owner_id, name, description, category, total_amount, bill_date, state, created_at, updated_at"

const participantColumns = "bill_id, position, id, name, email, amount_owed, paid"

func scanBill(s scanner) (core.SplitBill, error) {
	var (
		b                core.SplitBill
		created, updated string
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Description, &b.Category, &b.TotalAmount,
		&b.Date, &b.State, &created, &updated); err != nil {
		return core.SplitBill{}, err
	}
	var err error
	if b.CreatedAt, err = parseTime(created); err != nil {
		return core.SplitBill{}, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return core.SplitBill{}, err
	}
	b.Participants = make([]core.Participant, 0)
	return b, nil
}

func (r *SQLRepository) SplitBillsOf(ctx context.Context, ownerID string) ([]core.SplitBill, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+billColumns+" FROM split_bills WHERE owner_id = ? ORDER BY created_at, id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("query split bills: %w", err)
	}
	bills := make([]core.SplitBill, 0)
	index := make(map[string]int)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan split bill: %w", err)
		}
		index[b.ID] = len(bills)
		bills = append(bills, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := r.db.QueryContext(ctx,
		"SELECT p.bill_id, p.id, p.name, p.email, p.amount_owed, p.paid FROM split_bill_participants p "+
			"JOIN split_bills b ON b.id = p.bill_id WHERE b.owner_id = ? ORDER BY p.bill_id, p.position", ownerID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var (
			billID string
			p      core.Participant
		)
		if err := prows.Scan(&billID, &p.ID, &p.Name, &p.Email, &p.AmountOwed, &p.Paid); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if i, ok := index[billID]; ok {
			bills[i].Participants = append(bills[i].Participants, p)
		}
	}
	return bills, prows.Err()
}

func (r *SQLRepository) SplitBillByID(ctx context.Context, id, ownerID string) (core.SplitBill, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+billColumns+" FROM split_bills WHERE id = ? AND owner_id = ?", id, ownerID)
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SplitBill{}, core.NotFoundError("split bill", id)
	}
	if err != nil {
		return core.SplitBill{}, fmt.Errorf("get split bill by id: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, email, amount_owed, paid FROM split_bill_participants WHERE bill_id = ? ORDER BY position", id)
	if err != nil {
		return core.SplitBill{}, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p core.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.AmountOwed, &p.Paid); err != nil {
			return core.SplitBill{}, fmt.Errorf("scan participant: %w", err)
		}
		b.Participants = append(b.Participants, p)
	}
	return b, rows.Err()
}

// SaveSplitBill writes the bill and replaces its participant rows in one
// transaction.
func (r *SQLRepository) SaveSplitBill(ctx context.Context, b core.SplitBill) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := r.upsert("split_bills", "id", strings.Split(billColumns, ", "))
	if _, err := tx.ExecContext(ctx, stmt,
		b.ID, b.OwnerID, b.Name, b.Description, b.Category, b.TotalAmount, b.Date, string(b.State),
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt)); err != nil {
		return fmt.Errorf("save split bill: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM split_bill_participants WHERE bill_id = ?", b.ID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	insert := "INSERT INTO split_bill_participants (" + participantColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)"
	for i, p := range b.Participants {
		if _, err := tx.ExecContext(ctx, insert, b.ID, i, p.ID, p.Name, p.Email, p.AmountOwed, p.Paid); err != nil {
			return fmt.Errorf("insert participant %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit split bill: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteSplitBill(ctx context.Context, b core.SplitBill) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM split_bills WHERE id = ? AND owner_id = ?", b.ID, b.OwnerID)
	if err != nil {
		return fmt.Errorf("delete split bill: %w", err)
	}
	if err := requireAffected(res, "split bill", b.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM split_bill_participants WHERE bill_id = ?", b.ID); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}
	return tx.Commit()
}

// Users

func (r *SQLRepository) CreateUser(ctx context.Context, u core.User) error {
	if _, err := r.UserByEmail(ctx, u.Email); err == nil {
		return core.ErrEmailTaken
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, strings.ToLower(u.Email), u.DisplayName, u.PasswordHash, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", u.ID)
	return nil
}

func (r *SQLRepository) userWhere(ctx context.Context, where string, arg any) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, password_hash, created_at FROM users WHERE "+where, arg).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.NotFoundError("user", fmt.Sprint(arg))
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (r *SQLRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.userWhere(ctx, "email = ?", strings.ToLower(email))
}

func (r *SQLRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	return r.userWhere(ctx, "id = ?", id)
}

// UpdateUser checks existence first: MySQL reports zero affected rows when
// the name is unchanged.
func (r *SQLRepository) UpdateUser(ctx context.Context, u core.User) error {
	if _, err := r.UserByID(ctx, u.ID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE users SET display_name = ? WHERE id = ?", u.DisplayName, u.ID); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.NotFoundError(kind, id)
	}
	return nil
}

// decimal.Decimal and core.Date implement sql.Scanner and driver.Valuer.
var (
	_ sql.Scanner = (*decimal.Decimal)(nil)
	_ sql.Scanner = (*core.Date)(nil)
)
