package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"voledge/internal/types"
)

// TicketModel is the persisted form of a trade ticket. Structured
// fields (legs, gates, breakdown, sizing) serialize to JSON columns.
type TicketModel struct {
	ID             string         `gorm:"column:id;primaryKey"`
	Hash           string         `gorm:"column:hash;index:idx_ticket_hash"`
	Underlying     string         `gorm:"column:underlying;index"`
	Strategy       string         `gorm:"column:strategy"`
	Expiry         string         `gorm:"column:expiry"`
	DTE            int            `gorm:"column:dte"`
	CreditOrDebit  float64        `gorm:"column:credit_or_debit"`
	Width          float64        `gorm:"column:width"`
	MaxLoss        float64        `gorm:"column:max_loss"`
	PopEstimate    float64        `gorm:"column:pop_estimate"`
	EdgeScore      float64        `gorm:"column:edge_score"`
	LegsJSON       datatypes.JSON `gorm:"column:legs_json;type:TEXT"`
	BreakdownJSON  datatypes.JSON `gorm:"column:breakdown_json;type:TEXT"`
	RegimeGateJSON datatypes.JSON `gorm:"column:regime_gate_json;type:TEXT"`
	RiskGateJSON   datatypes.JSON `gorm:"column:risk_gate_json;type:TEXT"`
	SizingJSON     datatypes.JSON `gorm:"column:sizing_json;type:TEXT"`
	State          string         `gorm:"column:state;index"`
	CreatedAtUnix  int64          `gorm:"column:created_at"`
	ResolvedAtUnix *int64         `gorm:"column:resolved_at"`
	ResolvedBy     string         `gorm:"column:resolved_by"`
	RejectReason   string         `gorm:"column:reject_reason"`
}

func (TicketModel) TableName() string { return "trade_tickets" }

// AuditEntryModel records one committed state transition. Rows are
// inserted, never updated or deleted.
type AuditEntryModel struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement"`
	TicketID      string `gorm:"column:ticket_id;index"`
	TicketHash    string `gorm:"column:ticket_hash"`
	Action        string `gorm:"column:action"`
	Reason        string `gorm:"column:reason"`
	Actor         string `gorm:"column:actor"`
	TimestampUnix int64  `gorm:"column:timestamp"`
}

func (AuditEntryModel) TableName() string { return "audit_entries" }

// FromTicket converts a domain ticket into its persisted form.
func FromTicket(t types.TradeTicket) (*TicketModel, error) {
	legs, err := json.Marshal(t.Legs)
	if err != nil {
		return nil, fmt.Errorf("marshaling legs failed: %w", err)
	}
	breakdown, err := json.Marshal(t.ScoreBreakdown)
	if err != nil {
		return nil, fmt.Errorf("marshaling breakdown failed: %w", err)
	}
	regimeGate, err := json.Marshal(t.RegimeGate)
	if err != nil {
		return nil, fmt.Errorf("marshaling regime gate failed: %w", err)
	}
	riskGate, err := json.Marshal(t.RiskGate)
	if err != nil {
		return nil, fmt.Errorf("marshaling risk gate failed: %w", err)
	}
	m := &TicketModel{
		ID:             t.ID,
		Hash:           t.Hash,
		Underlying:     t.Underlying,
		Strategy:       string(t.Strategy),
		Expiry:         t.Expiry,
		DTE:            t.DTE,
		CreditOrDebit:  t.CreditOrDebit,
		Width:          t.Width,
		MaxLoss:        t.MaxLoss,
		PopEstimate:    t.PopEstimate,
		EdgeScore:      t.EdgeScore,
		LegsJSON:       legs,
		BreakdownJSON:  breakdown,
		RegimeGateJSON: regimeGate,
		RiskGateJSON:   riskGate,
		State:          string(t.State),
		CreatedAtUnix:  t.CreatedAt.Unix(),
		ResolvedBy:     t.ResolvedBy,
		RejectReason:   t.RejectReason,
	}
	if t.Sizing != nil {
		sizing, err := json.Marshal(t.Sizing)
		if err != nil {
			return nil, fmt.Errorf("marshaling sizing failed: %w", err)
		}
		m.SizingJSON = sizing
	}
	if t.ResolvedAt != nil {
		unix := t.ResolvedAt.Unix()
		m.ResolvedAtUnix = &unix
	}
	return m, nil
}

// ToTicket converts a persisted row back into a domain ticket.
func (m *TicketModel) ToTicket() (types.TradeTicket, error) {
	t := types.TradeTicket{
		ID:            m.ID,
		Hash:          m.Hash,
		Underlying:    m.Underlying,
		Strategy:      types.StrategyFamily(m.Strategy),
		Expiry:        m.Expiry,
		DTE:           m.DTE,
		CreditOrDebit: m.CreditOrDebit,
		Width:         m.Width,
		MaxLoss:       m.MaxLoss,
		PopEstimate:   m.PopEstimate,
		EdgeScore:     m.EdgeScore,
		State:         types.TicketState(m.State),
		CreatedAt:     time.Unix(m.CreatedAtUnix, 0).UTC(),
		ResolvedBy:    m.ResolvedBy,
		RejectReason:  m.RejectReason,
	}
	if len(m.LegsJSON) > 0 {
		if err := json.Unmarshal(m.LegsJSON, &t.Legs); err != nil {
			return types.TradeTicket{}, fmt.Errorf("unmarshaling legs failed: %w", err)
		}
	}
	if len(m.BreakdownJSON) > 0 {
		if err := json.Unmarshal(m.BreakdownJSON, &t.ScoreBreakdown); err != nil {
			return types.TradeTicket{}, fmt.Errorf("unmarshaling breakdown failed: %w", err)
		}
	}
	if len(m.RegimeGateJSON) > 0 {
		if err := json.Unmarshal(m.RegimeGateJSON, &t.RegimeGate); err != nil {
			return types.TradeTicket{}, fmt.Errorf("unmarshaling regime gate failed: %w", err)
		}
	}
	if len(m.RiskGateJSON) > 0 {
		if err := json.Unmarshal(m.RiskGateJSON, &t.RiskGate); err != nil {
			return types.TradeTicket{}, fmt.Errorf("unmarshaling risk gate failed: %w", err)
		}
	}
	if len(m.SizingJSON) > 0 {
		var sizing types.SizingRecommendation
		if err := json.Unmarshal(m.SizingJSON, &sizing); err != nil {
			return types.TradeTicket{}, fmt.Errorf("unmarshaling sizing failed: %w", err)
		}
		t.Sizing = &sizing
	}
	if m.ResolvedAtUnix != nil {
		resolved := time.Unix(*m.ResolvedAtUnix, 0).UTC()
		t.ResolvedAt = &resolved
	}
	return t, nil
}

// FromAuditEntry converts a domain audit entry into its persisted form.
func FromAuditEntry(e types.AuditEntry) *AuditEntryModel {
	return &AuditEntryModel{
		TicketID:      e.TicketID,
		TicketHash:    e.TicketHash,
		Action:        string(e.Action),
		Reason:        e.Reason,
		Actor:         e.Actor,
		TimestampUnix: e.Timestamp.Unix(),
	}
}

// ToAuditEntry converts a persisted row back into a domain entry.
func (m *AuditEntryModel) ToAuditEntry() types.AuditEntry {
	return types.AuditEntry{
		TicketID:   m.TicketID,
		TicketHash: m.TicketHash,
		Action:     types.AuditAction(m.Action),
		Reason:     m.Reason,
		Actor:      m.Actor,
		Timestamp:  time.Unix(m.TimestampUnix, 0).UTC(),
	}
}
