package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/accessgraph/engine/internal/coordinator"
)

// shardEntry is one line of the topology file: a shard ID, the base URL of
// its node process, and the hash range it owns.
type shardEntry struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Lo  uint64 `json:"lo"`
	Hi  uint64 `json:"hi"`
}

// topologyFile is the shape read from TOPOLOGY_FILE: the user shard group
// and the group shard group, each covering the full hash range with no
// gaps, per coordinator.Coordinator's documented assumption.
type topologyFile struct {
	UserShards  []shardEntry `json:"userShards"`
	GroupShards []shardEntry `json:"groupShards"`
}

// loadTopology reads and parses a topology file into ShardBinding slices,
// constructing one httpShardClient per entry.
func loadTopology(path string) (userShards, groupShards []coordinator.ShardBinding, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading topology file %s: %w", path, err)
	}
	var tf topologyFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, nil, fmt.Errorf("parsing topology file %s: %w", path, err)
	}
	if len(tf.UserShards) == 0 || len(tf.GroupShards) == 0 {
		return nil, nil, fmt.Errorf("topology file %s must declare at least one user shard and one group shard", path)
	}
	return bindings(tf.UserShards), bindings(tf.GroupShards), nil
}

func bindings(entries []shardEntry) []coordinator.ShardBinding {
	out := make([]coordinator.ShardBinding, 0, len(entries))
	for _, e := range entries {
		out = append(out, coordinator.ShardBinding{
			ID:     e.ID,
			Range:  coordinator.HashRange{Lo: e.Lo, Hi: e.Hi},
			Client: newHTTPShardClient(e.URL),
		})
	}
	return out
}
