package database

import (
	"fmt"
	"time"
)

// Turn is one user/agent exchange in a dataset's conversation log.
type Turn struct {
	ID        int64  `json:"id"`
	DatasetID string `json:"dataset_id"`
	UserText  string `json:"user_text"`
	AgentText string `json:"agent_text"`
	CreatedAt int64  `json:"created_at"` // Unix milliseconds
}

// HistoryPage is one page of turns read from a newest-first window. Items
// are chronologically ascending within the page.
type HistoryPage struct {
	Items      []Turn `json:"items"`
	TotalCount int    `json:"total_count"`
	HasMore    bool   `json:"has_more"`
}

// AppendTurn stores a completed exchange and returns the new turn id.
// Storage is unbounded; only retrieval is capped.
func (s *Store) AppendTurn(datasetID, userText, agentText string) (int64, error) {
	mu := s.datasetLock(datasetID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.GetDataset(datasetID); err != nil {
		return 0, err
	}

	res, err := s.db.Exec(`INSERT INTO conversation_turns (dataset_id, user_text, agent_text, created_at)
		VALUES (?, ?, ?, ?)`, datasetID, userText, agentText, time.Now().UnixMilli())
	if err != nil {
		return 0, WrapError("History", "AppendTurn", fmt.Errorf("%w: %v", ErrEngine, err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, WrapError("History", "AppendTurn", err)
	}
	return id, nil
}

func (s *Store) scanTurns(query string, args ...any) ([]Turn, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.DatasetID, &t.UserText, &t.AgentText, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func reverseTurns(ts []Turn) {
	for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
		ts[i], ts[j] = ts[j], ts[i]
	}
}

// RecentTurns returns the most recent limit turns, oldest first.
func (s *Store) RecentTurns(datasetID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	turns, err := s.scanTurns(`SELECT id, dataset_id, user_text, agent_text, created_at
		FROM conversation_turns WHERE dataset_id = ? ORDER BY id DESC LIMIT ?`, datasetID, limit)
	if err != nil {
		return nil, WrapError("History", "RecentTurns", err)
	}
	reverseTurns(turns)
	return turns, nil
}

// PageTurns returns one page from a newest-first window over the turn log.
// Page numbers start at 1.
func (s *Store) PageTurns(datasetID string, page, pageSize int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversation_turns WHERE dataset_id = ?`,
		datasetID).Scan(&total); err != nil {
		return nil, WrapError("History", "PageTurns", fmt.Errorf("%w: %v", ErrEngine, err))
	}

	offset := (page - 1) * pageSize
	turns, err := s.scanTurns(`SELECT id, dataset_id, user_text, agent_text, created_at
		FROM conversation_turns WHERE dataset_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		datasetID, pageSize, offset)
	if err != nil {
		return nil, WrapError("History", "PageTurns", err)
	}
	reverseTurns(turns)

	return &HistoryPage{
		Items:      turns,
		TotalCount: total,
		HasMore:    offset+len(turns) < total,
	}, nil
}

// AllTurns returns the full turn log, oldest first.
func (s *Store) AllTurns(datasetID string) ([]Turn, error) {
	turns, err := s.scanTurns(`SELECT id, dataset_id, user_text, agent_text, created_at
		FROM conversation_turns WHERE dataset_id = ? ORDER BY id ASC`, datasetID)
	if err != nil {
		return nil, WrapError("History", "AllTurns", err)
	}
	return turns, nil
}

// ClearHistory deletes all turns for a dataset.
func (s *Store) ClearHistory(datasetID string) error {
	mu := s.datasetLock(datasetID)
	mu.Lock()
	defer mu.Unlock()
	return s.clearHistoryLocked(datasetID)
}

func (s *Store) clearHistoryLocked(datasetID string) error {
	if _, err := s.db.Exec(`DELETE FROM conversation_turns WHERE dataset_id = ?`, datasetID); err != nil {
		return WrapError("History", "ClearHistory", fmt.Errorf("%w: %v", ErrEngine, err))
	}
	return nil
}
