package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/nodeexec/internal/api/models"
	"github.com/smazurov/nodeexec/internal/metrics"
)

// registerMetricsRoutes registers the per-node counter endpoints.
func (s *Server) registerMetricsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-node-stats",
		Method:      http.MethodGet,
		Path:        "/api/nodes",
		Summary:     "Node Stats",
		Description: "Aggregate executor counters for every node seen since startup",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.NodeStatsResponse, error) {
		all := metrics.GetAllNodeStats()
		nodes := make([]models.NodeStatsData, 0, len(all))
		for node, stats := range all {
			nodes = append(nodes, models.NodeStatsData{
				Node:        node,
				Running:     stats.Running,
				Runs:        stats.Runs,
				Failures:    stats.Failures,
				OutputLines: stats.OutputLines,
				LastExit:    stats.LastExit,
			})
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Node < nodes[j].Node })
		return &models.NodeStatsResponse{Body: models.NodeStatsListData{Nodes: nodes}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "reset-node-stats",
		Method:        http.MethodDelete,
		Path:          "/api/nodes/{node}",
		Summary:       "Reset Node Stats",
		Description:   "Drop the counters and Prometheus series of a node",
		Tags:          []string{"metrics"},
		Security:      withAuth(),
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
	}, func(_ context.Context, input *models.NodeInput) (*struct{}, error) {
		if metrics.GetNodeStats(input.Node) == nil {
			return nil, huma.Error404NotFound("no stats for node: " + input.Node)
		}
		metrics.DeleteNodeMetrics(input.Node)
		s.logger.Info("Node stats reset via API", "node", input.Node)
		return nil, nil
	})
}
