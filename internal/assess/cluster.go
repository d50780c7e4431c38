package assess

import (
	"context"
	"fmt"
	"strings"

	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/models"
)

type clusterPayload struct {
	Clusters []struct {
		EventKey   string   `json:"event_key"`
		ArticleIDs []string `json:"article_ids"`
	} `json:"clusters"`
}

// ClusterBatch groups one batch of assessed articles into event clusters by
// semantic similarity of headline and assessment. Articles the model failed
// to place are returned as singleton clusters so nothing is lost.
func (s *Suite) ClusterBatch(ctx context.Context, articles []models.AssessedArticle) ([]models.EventCluster, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Articles to cluster (%d):\n", len(articles))
	for _, article := range articles {
		fmt.Fprintf(&sb, "\nid: %s\nheadline: %s\nsummary: %s\n", article.ID, article.Headline, article.Assessment)
	}

	res := s.Invoker.Invoke(ctx, s.cluster, sb.String())
	payload, aiErr := agent.Decode[clusterPayload](s.cluster.Name, res)
	if aiErr != nil {
		return nil, aiErr
	}

	known := make(map[string]struct{}, len(articles))
	for _, article := range articles {
		known[article.ID] = struct{}{}
	}

	placed := make(map[string]struct{}, len(articles))
	var clusters []models.EventCluster
	for _, c := range payload.Clusters {
		key := normalizeEventKey(c.EventKey)
		if key == "" {
			continue
		}
		cluster := models.NewEventCluster(key)
		for _, id := range c.ArticleIDs {
			if _, ok := known[id]; !ok {
				continue // model invented an id
			}
			cluster.ArticleIDs[id] = struct{}{}
			placed[id] = struct{}{}
		}
		if len(cluster.ArticleIDs) > 0 {
			clusters = append(clusters, cluster)
		}
	}

	for _, article := range articles {
		if _, ok := placed[article.ID]; ok {
			continue
		}
		clusters = append(clusters, models.NewEventCluster(singletonKey(article), article.ID))
	}
	return clusters, nil
}

func normalizeEventKey(key string) string {
	key = strings.TrimSpace(strings.ToLower(key))
	key = strings.ReplaceAll(key, " ", "_")
	return strings.Trim(key, "_")
}

func singletonKey(article models.AssessedArticle) string {
	words := strings.Fields(strings.ToLower(article.Headline))
	if len(words) > 5 {
		words = words[:5]
	}
	return normalizeEventKey("solo_" + strings.Join(words, "_"))
}
