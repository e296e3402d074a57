package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cesdefin/backend/internal/models"
	"github.com/cesdefin/backend/internal/store"
)

const defaultHistoryLimit = 50

// HistoryService answers read-only queries over an account's movement log:
// filtering, sorting, pagination, aggregation and export. It works on a
// snapshot of the log taken at call time, so it is safe to run alongside
// any number of ledger writers.
type HistoryService struct {
	store store.Store
}

func NewHistoryService(st store.Store) *HistoryService {
	return &HistoryService{store: st}
}

// Filter narrows and pages a history listing. Zero values mean "no
// constraint"; SortOrder defaults to newest first.
type Filter struct {
	Kind      models.MovementKind
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
	SortOrder string // "asc" or "desc" (default)
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// Summary totals a set of movements per direction.
type Summary struct {
	TotalDeposits    int64 `json:"totalDeposits"`
	TotalWithdrawals int64 `json:"totalWithdrawals"`
	TotalTransferOut int64 `json:"totalTransferOut"`
	TotalTransferIn  int64 `json:"totalTransferIn"`
	TotalCommissions int64 `json:"totalCommissions"`
	NetFlow          int64 `json:"netFlow"`
}

type HistoryPage struct {
	Movements  []models.Movement `json:"movements"`
	Pagination Pagination        `json:"pagination"`
	Summary    Summary           `json:"summary"`
}

type SearchResult struct {
	Movements []models.Movement `json:"movements"`
	Count     int               `json:"count"`
	Summary   Summary           `json:"summary"`
}

type GroupStat struct {
	Count int   `json:"count"`
	Total int64 `json:"total"`
}

type Statistics struct {
	TotalTransactions  int                  `json:"totalTransactions"`
	Summary            Summary              `json:"summary"`
	ByKind             map[string]GroupStat `json:"byKind"`
	ByMonth            map[string]GroupStat `json:"byMonth"`
	AverageTransaction float64              `json:"averageTransaction"`
}

// ExportRow is one flat line of an account statement. CSV encoding is the
// API layer's concern; the service only produces the ordered rows.
type ExportRow struct {
	Time       time.Time
	Kind       string
	Gross      int64
	Commission int64
	Net        int64
	Method     string
	Detail     string
}

// List returns one page of the account's history matching the filter,
// with pagination info and a summary over the whole filtered set.
func (s *HistoryService) List(ctx context.Context, accountID string, filter Filter) (*HistoryPage, error) {
	movements, err := s.snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}

	filtered := applyFilter(movements, filter)
	sortByTime(filtered, filter.SortOrder == "asc")

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	total := len(filtered)
	page := []models.Movement{}
	if offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		page = filtered[offset:end]
	}

	return &HistoryPage{
		Movements: page,
		Pagination: Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+limit < total,
		},
		Summary: summarize(filtered),
	}, nil
}

// Recent returns the newest movements up to limit.
func (s *HistoryService) Recent(ctx context.Context, accountID string, limit int) (*HistoryPage, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.List(ctx, accountID, Filter{Limit: limit})
}

// Search matches text case-insensitively against detail, kind and method,
// newest first.
func (s *HistoryService) Search(ctx context.Context, accountID, text string) (*SearchResult, error) {
	movements, err := s.snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(text)
	matches := []models.Movement{}
	for _, m := range movements {
		if strings.Contains(strings.ToLower(m.Detail), needle) ||
			strings.Contains(strings.ToLower(string(m.Kind)), needle) ||
			strings.Contains(strings.ToLower(m.Method), needle) {
			matches = append(matches, m)
		}
	}
	sortByTime(matches, false)

	return &SearchResult{
		Movements: matches,
		Count:     len(matches),
		Summary:   summarize(matches),
	}, nil
}

// Statistics aggregates the whole log: totals, per-kind and per-month
// groupings, and the average absolute movement amount.
func (s *HistoryService) Statistics(ctx context.Context, accountID string) (*Statistics, error) {
	movements, err := s.snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}

	byKind := make(map[string]GroupStat)
	byMonth := make(map[string]GroupStat)
	var totalAbs int64
	for _, m := range movements {
		abs := m.Gross
		if abs < 0 {
			abs = -abs
		}
		totalAbs += abs

		k := byKind[string(m.Kind)]
		k.Count++
		k.Total += abs
		byKind[string(m.Kind)] = k

		monthKey := fmt.Sprintf("%04d-%02d", m.CreatedAt.Year(), int(m.CreatedAt.Month()))
		mo := byMonth[monthKey]
		mo.Count++
		mo.Total += abs
		byMonth[monthKey] = mo
	}

	average := 0.0
	if len(movements) > 0 {
		average = float64(totalAbs) / float64(len(movements))
	}

	return &Statistics{
		TotalTransactions:  len(movements),
		Summary:            summarize(movements),
		ByKind:             byKind,
		ByMonth:            byMonth,
		AverageTransaction: average,
	}, nil
}

// ExportRows flattens the full log, newest first, for statement export.
func (s *HistoryService) ExportRows(ctx context.Context, accountID string) ([]ExportRow, error) {
	movements, err := s.snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sortByTime(movements, false)

	rows := make([]ExportRow, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, ExportRow{
			Time:       m.CreatedAt,
			Kind:       string(m.Kind),
			Gross:      m.Gross,
			Commission: m.Commission,
			Net:        m.Net,
			Method:     m.Method,
			Detail:     m.Detail,
		})
	}
	return rows, nil
}

func (s *HistoryService) snapshot(ctx context.Context, accountID string) ([]models.Movement, error) {
	movements, err := s.store.Movements(ctx, accountID)
	if err != nil {
		return nil, mapStoreError(err, ErrAccountNotFound)
	}
	return movements, nil
}

func applyFilter(movements []models.Movement, filter Filter) []models.Movement {
	out := []models.Movement{}
	for _, m := range movements {
		if filter.Kind != "" && m.Kind != filter.Kind {
			continue
		}
		if !filter.From.IsZero() && m.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && m.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// sortByTime orders movements by timestamp; ties keep insertion order so
// paginated slices stay stable.
func sortByTime(movements []models.Movement, ascending bool) {
	sort.SliceStable(movements, func(i, j int) bool {
		if ascending {
			return movements[i].CreatedAt.Before(movements[j].CreatedAt)
		}
		return movements[i].CreatedAt.After(movements[j].CreatedAt)
	})
}

func summarize(movements []models.Movement) Summary {
	var s Summary
	for _, m := range movements {
		abs := m.Gross
		if abs < 0 {
			abs = -abs
		}
		switch m.Kind {
		case models.KindDeposit:
			s.TotalDeposits += abs
		case models.KindWithdrawal:
			s.TotalWithdrawals += abs
		case models.KindTransfer:
			if m.Gross < 0 {
				s.TotalTransferOut += abs
			} else {
				s.TotalTransferIn += m.Gross
			}
		}
		s.TotalCommissions += m.Commission
	}
	s.NetFlow = s.TotalDeposits + s.TotalTransferIn - s.TotalWithdrawals - s.TotalTransferOut
	return s
}
