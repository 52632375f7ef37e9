package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/observix/observix/pkg/models"
)

// AgentService tracks agent liveness. Agents are never registered
// explicitly; polling for assignments is what creates and refreshes them.
type AgentService struct {
	db *sqlx.DB
}

// NewAgentService creates a new AgentService
func NewAgentService(db *sqlx.DB) *AgentService {
	return &AgentService{db: db}
}

type agentRow struct {
	AgentID     string    `db:"agent_id"`
	Region      string    `db:"region"`
	FirstSeenAt time.Time `db:"first_seen_at"`
	LastSeenAt  time.Time `db:"last_seen_at"`
}

// Touch upserts the agent record and refreshes last_seen_at. The region is
// taken from the poll, so a relocated agent shows its current region.
func (s *AgentService) Touch(ctx context.Context, agentID, region string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (agent_id, region, first_seen_at, last_seen_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
		   region = excluded.region,
		   last_seen_at = excluded.last_seen_at`,
		agentID, region, now, now)
	if err != nil {
		return fmt.Errorf("failed to touch agent: %w", err)
	}
	return nil
}

// List returns all known agents with status computed against the offline
// threshold: online iff now - last_seen_at <= threshold.
func (s *AgentService) List(ctx context.Context, offlineThreshold time.Duration) ([]*models.Agent, error) {
	var rows []agentRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT agent_id, region, first_seen_at, last_seen_at
		 FROM agents ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	now := time.Now().UTC()
	agents := make([]*models.Agent, 0, len(rows))
	for _, row := range rows {
		status := models.AgentStatusOnline
		if now.Sub(row.LastSeenAt.UTC()) > offlineThreshold {
			status = models.AgentStatusOffline
		}
		agents = append(agents, &models.Agent{
			AgentID:     row.AgentID,
			Region:      row.Region,
			FirstSeenAt: row.FirstSeenAt.UTC(),
			LastSeenAt:  row.LastSeenAt.UTC(),
			Status:      status,
		})
	}
	return agents, nil
}
