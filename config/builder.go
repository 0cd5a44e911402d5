package config

import (
	"sort"

	"github.com/etlive/etlive"
)

// BuildNodes converts parsed configuration into SDK [etlive.Node] values,
// in file order.
func BuildNodes(cfg *Config) ([]etlive.Node, error) {
	nodes := make([]etlive.Node, 0, len(cfg.Nodes))
	for _, nc := range cfg.Nodes {
		n, err := buildNode(nc)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Options converts the service-level settings into [etlive.Option] values.
// Nodes are included; logger and callbacks are left to the caller.
func Options(cfg *Config) ([]etlive.Option, error) {
	nodes, err := BuildNodes(cfg)
	if err != nil {
		return nil, err
	}

	opts := []etlive.Option{
		etlive.WithNodes(nodes...),
		etlive.WithPort(cfg.Port),
		etlive.WithPollInterval(cfg.PollInterval.Duration()),
		etlive.WithPollTimeout(cfg.PollTimeout.Duration()),
		etlive.WithShutdownTimeout(cfg.ShutdownTimeout.Duration()),
	}
	if cfg.Title != "" {
		opts = append(opts, etlive.WithTitle(cfg.Title))
	}
	if cfg.StaticDir != "" {
		opts = append(opts, etlive.WithStaticDir(cfg.StaticDir))
	}
	if cfg.NATS.URL != "" {
		opts = append(opts, etlive.WithNATS(cfg.NATS.URL, cfg.NATS.Subject))
	}
	return opts, nil
}

func buildNode(nc NodeConfig) (etlive.Node, error) {
	var opts []etlive.NodeOption

	if nc.Location != "" {
		opts = append(opts, etlive.WithLocation(nc.Location))
	}
	if len(nc.Headers) > 0 {
		opts = append(opts, etlive.WithHeaders(mapToKeyValuePairs(nc.Headers)...))
	}

	return etlive.NewNode(nc.ID, nc.Endpoint, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
