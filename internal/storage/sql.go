package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"habitbot/internal/habit"
	"habitbot/pkg/logx"
)

//go:embed migrations_sqlite.sql migrations_postgres.sql
var migrationsFS embed.FS

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// sqlStore serves both sqlite and postgres; queries are written with '?'
// placeholders and rebound per dialect.
type sqlStore struct {
	db      *sql.DB
	log     logx.Logger
	dialect dialect
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; one connection also keeps per-connection pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	st := &sqlStore{db: db, log: log, dialect: dialectSQLite}
	if err := st.migrate(context.Background(), "migrations_sqlite.sql"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	st := &sqlStore{db: db, log: log, dialect: dialectPostgres}
	if err := st.migrate(context.Background(), "migrations_postgres.sql"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqlStore) migrate(ctx context.Context, name string) error {
	b, err := migrationsFS.ReadFile(name)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("migrate %s: %w", name, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites '?' placeholders to '$n' for postgres.
func (s *sqlStore) rebind(q string) string {
	if s.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const habitColumns = `h.id, h.user_id, u.name, u.telegram_id, h.place, h.action, h.time,
	h.periodicity, h.duration, h.is_nice, h.reward, h.related_habit_id, h.is_public`

const habitFrom = ` FROM habits h JOIN users u ON u.id = h.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(r rowScanner) (habit.Habit, error) {
	var (
		h       habit.Habit
		tg      sql.NullInt64
		clock   string
		reward  sql.NullString
		related sql.NullInt64
	)
	err := r.Scan(&h.ID, &h.OwnerID, &h.Owner.Name, &tg, &h.Place, &h.Action, &clock,
		&h.Periodicity, &h.Duration, &h.IsNice, &reward, &related, &h.IsPublic)
	if err != nil {
		return habit.Habit{}, err
	}
	h.Owner.ID = h.OwnerID
	if tg.Valid {
		v := tg.Int64
		h.Owner.TelegramID = &v
	}
	c, err := habit.ParseClock(clock)
	if err != nil {
		return habit.Habit{}, fmt.Errorf("habit %d: %w", h.ID, err)
	}
	h.Time = c
	h.Reward = reward.String
	if related.Valid {
		v := related.Int64
		h.LinkedHabitID = &v
	}
	return h, nil
}

func (s *sqlStore) queryHabits(ctx context.Context, where string, args ...any) ([]habit.Habit, error) {
	q := `SELECT ` + habitColumns + habitFrom + where + ` ORDER BY h.id`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []habit.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *sqlStore) ListAll(ctx context.Context) ([]habit.Habit, error) {
	return s.queryHabits(ctx, "")
}

func (s *sqlStore) ListByOwner(ctx context.Context, ownerID int64) ([]habit.Habit, error) {
	return s.queryHabits(ctx, ` WHERE h.user_id = ?`, ownerID)
}

func (s *sqlStore) ListByTelegramID(ctx context.Context, telegramID int64) ([]habit.Habit, error) {
	return s.queryHabits(ctx, ` WHERE u.telegram_id = ?`, telegramID)
}

func (s *sqlStore) ListPublic(ctx context.Context) ([]habit.Habit, error) {
	return s.queryHabits(ctx, ` WHERE h.is_public = ?`, true)
}

func (s *sqlStore) GetHabit(ctx context.Context, id int64) (habit.Habit, error) {
	q := `SELECT ` + habitColumns + habitFrom + ` WHERE h.id = ?`
	h, err := scanHabit(s.db.QueryRowContext(ctx, s.rebind(q), id))
	if errors.Is(err, sql.ErrNoRows) {
		return habit.Habit{}, fmt.Errorf("habit %d: %w", id, ErrNotFound)
	}
	return h, err
}

func (s *sqlStore) InsertHabit(ctx context.Context, h habit.Habit) (habit.Habit, error) {
	q := `INSERT INTO habits(user_id, place, action, time, periodicity, duration, is_nice, reward, related_habit_id, is_public)
		VALUES(?,?,?,?,?,?,?,?,?,?) RETURNING id`
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(q),
		h.OwnerID, h.Place, h.Action, h.Time.String(), h.Periodicity, h.Duration,
		h.IsNice, nullStr(h.Reward), nullInt(h.LinkedHabitID), h.IsPublic,
	).Scan(&id)
	if err != nil {
		return habit.Habit{}, err
	}
	return s.GetHabit(ctx, id)
}

func (s *sqlStore) Save(ctx context.Context, h habit.Habit) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE habits SET time=? WHERE id=?`), h.Time.String(), h.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("habit %d: %w", h.ID, ErrNotFound)
	}
	return nil
}

func (s *sqlStore) ReplaceHabit(ctx context.Context, h habit.Habit) error {
	q := `UPDATE habits SET user_id=?, place=?, action=?, time=?, periodicity=?, duration=?,
		is_nice=?, reward=?, related_habit_id=?, is_public=? WHERE id=?`
	res, err := s.db.ExecContext(ctx, s.rebind(q),
		h.OwnerID, h.Place, h.Action, h.Time.String(), h.Periodicity, h.Duration,
		h.IsNice, nullStr(h.Reward), nullInt(h.LinkedHabitID), h.IsPublic, h.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("habit %d: %w", h.ID, ErrNotFound)
	}
	return nil
}

func (s *sqlStore) DeleteHabit(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE habits SET related_habit_id = NULL WHERE related_habit_id = ?`), id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM habits WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("habit %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (s *sqlStore) CreateUser(ctx context.Context, name string, telegramID *int64) (habit.Owner, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO users(name, telegram_id) VALUES(?, ?) RETURNING id`),
		name, nullInt(telegramID)).Scan(&id)
	if err != nil {
		return habit.Owner{}, err
	}
	return habit.Owner{ID: id, Name: name, TelegramID: telegramID}, nil
}

func (s *sqlStore) GetUser(ctx context.Context, id int64) (habit.Owner, error) {
	var (
		o  habit.Owner
		tg sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, telegram_id FROM users WHERE id = ?`), id).Scan(&o.ID, &o.Name, &tg)
	if errors.Is(err, sql.ErrNoRows) {
		return habit.Owner{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return habit.Owner{}, err
	}
	if tg.Valid {
		v := tg.Int64
		o.TelegramID = &v
	}
	return o, nil
}

func (s *sqlStore) ListUsers(ctx context.Context) ([]habit.Owner, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, telegram_id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []habit.Owner
	for rows.Next() {
		var (
			o  habit.Owner
			tg sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &o.Name, &tg); err != nil {
			return nil, err
		}
		if tg.Valid {
			v := tg.Int64
			o.TelegramID = &v
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *sqlStore) LinkTelegram(ctx context.Context, userID int64, telegramID *int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET telegram_id = ? WHERE id = ?`), nullInt(telegramID), userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
