package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"habitbot/internal/habit"
	"habitbot/pkg/logx"
)

// fileStore keeps everything in a single JSON snapshot rewritten on every
// change (tmp file + rename). Suitable for a handful of users.
type fileStore struct {
	log  logx.Logger
	path string

	mu   sync.Mutex
	data fileSnapshot
}

type fileSnapshot struct {
	NextUserID  int64         `json:"next_user_id"`
	NextHabitID int64         `json:"next_habit_id"`
	Users       []habit.Owner `json:"users"`
	Habits      []fileHabit   `json:"habits"`
}

type fileHabit struct {
	ID            int64       `json:"id"`
	OwnerID       int64       `json:"user_id"`
	Place         string      `json:"place"`
	Action        string      `json:"action"`
	Time          habit.Clock `json:"time"`
	Periodicity   int         `json:"periodicity"`
	Duration      int         `json:"duration"`
	IsNice        bool        `json:"is_nice"`
	Reward        string      `json:"reward,omitempty"`
	LinkedHabitID *int64      `json:"related_habit_id,omitempty"`
	IsPublic      bool        `json:"is_public"`
}

func toFileHabit(h habit.Habit) fileHabit {
	return fileHabit{
		ID: h.ID, OwnerID: h.OwnerID, Place: h.Place, Action: h.Action, Time: h.Time,
		Periodicity: h.Periodicity, Duration: h.Duration, IsNice: h.IsNice,
		Reward: strings.TrimSpace(h.Reward), LinkedHabitID: h.LinkedHabitID, IsPublic: h.IsPublic,
	}
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &fileStore{log: log, path: path, data: fileSnapshot{NextUserID: 1, NextHabitID: 1}}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(b, &s.data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if s.data.NextUserID < 1 {
			s.data.NextUserID = 1
		}
		if s.data.NextHabitID < 1 {
			s.data.NextHabitID = 1
		}
	}
	return s, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) flushLocked() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) userLocked(id int64) (habit.Owner, int, bool) {
	for i, u := range s.data.Users {
		if u.ID == id {
			return u, i, true
		}
	}
	return habit.Owner{}, -1, false
}

func (s *fileStore) habitIndexLocked(id int64) int {
	for i, h := range s.data.Habits {
		if h.ID == id {
			return i
		}
	}
	return -1
}

func (s *fileStore) resolveLocked(fh fileHabit) habit.Habit {
	owner, _, _ := s.userLocked(fh.OwnerID)
	return habit.Habit{
		ID: fh.ID, OwnerID: fh.OwnerID, Owner: copyOwner(owner),
		Place: fh.Place, Action: fh.Action, Time: fh.Time,
		Periodicity: fh.Periodicity, Duration: fh.Duration, IsNice: fh.IsNice,
		Reward: fh.Reward, LinkedHabitID: copyID(fh.LinkedHabitID), IsPublic: fh.IsPublic,
	}
}

func (s *fileStore) filter(keep func(fileHabit) bool) []habit.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []habit.Habit
	for _, fh := range s.data.Habits {
		if keep(fh) {
			out = append(out, s.resolveLocked(fh))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fileStore) ListAll(ctx context.Context) ([]habit.Habit, error) {
	return s.filter(func(fileHabit) bool { return true }), nil
}

func (s *fileStore) ListByOwner(ctx context.Context, ownerID int64) ([]habit.Habit, error) {
	return s.filter(func(fh fileHabit) bool { return fh.OwnerID == ownerID }), nil
}

func (s *fileStore) ListByTelegramID(ctx context.Context, telegramID int64) ([]habit.Habit, error) {
	s.mu.Lock()
	owners := map[int64]bool{}
	for _, u := range s.data.Users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			owners[u.ID] = true
		}
	}
	s.mu.Unlock()
	return s.filter(func(fh fileHabit) bool { return owners[fh.OwnerID] }), nil
}

func (s *fileStore) ListPublic(ctx context.Context) ([]habit.Habit, error) {
	return s.filter(func(fh fileHabit) bool { return fh.IsPublic }), nil
}

func (s *fileStore) GetHabit(ctx context.Context, id int64) (habit.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.habitIndexLocked(id)
	if i < 0 {
		return habit.Habit{}, fmt.Errorf("habit %d: %w", id, ErrNotFound)
	}
	return s.resolveLocked(s.data.Habits[i]), nil
}

func (s *fileStore) InsertHabit(ctx context.Context, h habit.Habit) (habit.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, ok := s.userLocked(h.OwnerID); !ok {
		return habit.Habit{}, fmt.Errorf("user %d: %w", h.OwnerID, ErrNotFound)
	}
	h.ID = s.data.NextHabitID
	s.data.NextHabitID++
	fh := toFileHabit(h)
	s.data.Habits = append(s.data.Habits, fh)
	if err := s.flushLocked(); err != nil {
		return habit.Habit{}, err
	}
	return s.resolveLocked(fh), nil
}

func (s *fileStore) Save(ctx context.Context, h habit.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.habitIndexLocked(h.ID)
	if i < 0 {
		return fmt.Errorf("habit %d: %w", h.ID, ErrNotFound)
	}
	s.data.Habits[i].Time = h.Time
	return s.flushLocked()
}

func (s *fileStore) ReplaceHabit(ctx context.Context, h habit.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.habitIndexLocked(h.ID)
	if i < 0 {
		return fmt.Errorf("habit %d: %w", h.ID, ErrNotFound)
	}
	s.data.Habits[i] = toFileHabit(h)
	return s.flushLocked()
}

func (s *fileStore) DeleteHabit(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.habitIndexLocked(id)
	if i < 0 {
		return fmt.Errorf("habit %d: %w", id, ErrNotFound)
	}
	s.data.Habits = append(s.data.Habits[:i], s.data.Habits[i+1:]...)
	for j := range s.data.Habits {
		if l := s.data.Habits[j].LinkedHabitID; l != nil && *l == id {
			s.data.Habits[j].LinkedHabitID = nil
		}
	}
	return s.flushLocked()
}

func (s *fileStore) CreateUser(ctx context.Context, name string, telegramID *int64) (habit.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkTelegramFreeLocked(0, telegramID); err != nil {
		return habit.Owner{}, err
	}
	o := habit.Owner{ID: s.data.NextUserID, Name: name, TelegramID: copyID(telegramID)}
	s.data.NextUserID++
	s.data.Users = append(s.data.Users, o)
	if err := s.flushLocked(); err != nil {
		return habit.Owner{}, err
	}
	return copyOwner(o), nil
}

func (s *fileStore) GetUser(ctx context.Context, id int64) (habit.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, _, ok := s.userLocked(id)
	if !ok {
		return habit.Owner{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return copyOwner(o), nil
}

func (s *fileStore) ListUsers(ctx context.Context) ([]habit.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]habit.Owner, 0, len(s.data.Users))
	for _, u := range s.data.Users {
		out = append(out, copyOwner(u))
	}
	return out, nil
}

func (s *fileStore) LinkTelegram(ctx context.Context, userID int64, telegramID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, i, ok := s.userLocked(userID)
	if !ok {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err := s.checkTelegramFreeLocked(userID, telegramID); err != nil {
		return err
	}
	s.data.Users[i].TelegramID = copyID(telegramID)
	return s.flushLocked()
}

// checkTelegramFreeLocked mirrors the UNIQUE constraint of the SQL drivers.
func (s *fileStore) checkTelegramFreeLocked(userID int64, telegramID *int64) error {
	if telegramID == nil {
		return nil
	}
	for _, u := range s.data.Users {
		if u.ID != userID && u.TelegramID != nil && *u.TelegramID == *telegramID {
			return fmt.Errorf("telegram id %d already linked to user %d", *telegramID, u.ID)
		}
	}
	return nil
}

func copyID(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyOwner(o habit.Owner) habit.Owner {
	o.TelegramID = copyID(o.TelegramID)
	return o
}
