package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	pkgch "FinSignal/pkg/clickhouse"
)

// CHSignalJournal keeps the signal and outcome audit trail in ClickHouse.
type CHSignalJournal struct {
	client   *pkgch.Client
	db       *sql.DB
	database string
}

func NewCHSignalJournal(ch *pkgch.Client) *CHSignalJournal {
	return &CHSignalJournal{client: ch, db: ch.DB(), database: ch.Database()}
}

// Init creates the tables when missing.
func (j *CHSignalJournal) Init(ctx context.Context) error {
	return j.client.InitSchema(ctx, Schema(j.database))
}

func (j *CHSignalJournal) RecordSignal(ctx context.Context, s *models.Signal) error {
	q := fmt.Sprintf(`INSERT INTO %s.%s
        (id, symbol, ts, action, confidence, group_id, price, expiry_seconds, auto_trade, gate_score, regime, reasons, rl_state, rl_action)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, j.database, SignalsTable)
	var auto uint8
	if s.AutoTrade {
		auto = 1
	}
	_, err := j.db.ExecContext(ctx, q,
		s.ID,
		s.Symbol,
		time.UnixMilli(s.Timestamp).UTC(),
		string(s.Action),
		s.Confidence,
		s.GroupID,
		s.Price,
		uint32(s.ExpirySeconds),
		auto,
		s.GateScore,
		s.Regime.Label(),
		nonNilStrings(s.Reasons),
		nonNilFloats(s.RLState),
		int32(s.RLAction),
	)
	if err != nil {
		return fmt.Errorf("record signal %s: %w", s.ID, err)
	}
	return nil
}

func (j *CHSignalJournal) RecordOutcome(ctx context.Context, o *models.OutcomeRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s.%s
        (signal_id, symbol, group_id, action, result, confidence, entry_price, exit_price, reward, source, verified_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, j.database, OutcomesTable)
	_, err := j.db.ExecContext(ctx, q,
		o.SignalID,
		o.Symbol,
		o.GroupID,
		string(o.Action),
		string(o.Result),
		o.Confidence,
		o.EntryPrice,
		o.ExitPrice,
		o.Reward,
		o.Source,
		o.VerifiedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record outcome %s: %w", o.SignalID, err)
	}
	return nil
}

// RecentOutcomes returns up to limit outcomes for symbol, oldest first.
func (j *CHSignalJournal) RecentOutcomes(ctx context.Context, symbol string, limit int) ([]models.OutcomeRecord, error) {
	q := fmt.Sprintf(`SELECT signal_id, symbol, group_id, action, result, confidence, entry_price, exit_price, reward, source, verified_at
        FROM %s.%s
        WHERE symbol = ?
        ORDER BY verified_at DESC
        LIMIT ?`, j.database, OutcomesTable)
	rows, err := j.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("recent outcomes: %w", err)
	}
	defer rows.Close()

	var out []models.OutcomeRecord
	for rows.Next() {
		var (
			o              models.OutcomeRecord
			action, result string
		)
		if err := rows.Scan(&o.SignalID, &o.Symbol, &o.GroupID, &action, &result, &o.Confidence,
			&o.EntryPrice, &o.ExitPrice, &o.Reward, &o.Source, &o.VerifiedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Action = models.Action(action)
		o.Result = models.Result(result)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// Close is a no-op; the client is closed by its owner.
func (j *CHSignalJournal) Close() error { return nil }

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilFloats(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

var _ domrepo.SignalJournal = (*CHSignalJournal)(nil)
