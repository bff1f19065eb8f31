package services

import (
	"fmt"
	"strconv"

	"claim-service/internal/ports"

	"github.com/bwmarrin/snowflake"
)

const claimNumberAttempts = 5

// ClaimNumberGenerator issues claim numbers of the form CR-<year>-<NNNNNN>.
// The suffix is the low six decimal digits of a snowflake id, so numbers minted
// by one node in quick succession never collide; older clashes are caught by the
// unique constraint and regenerated.
type ClaimNumberGenerator struct {
	node  *snowflake.Node
	clock ports.Clock
}

func NewClaimNumberGenerator(nodeID int64, clock ports.Clock) (*ClaimNumberGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return &ClaimNumberGenerator{node: node, clock: clock}, nil
}

func (g *ClaimNumberGenerator) Next() string {
	id := g.node.Generate().Int64()
	return fmt.Sprintf("CR-%d-%06d", g.clock.Now().Year(), id%1_000_000)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
