package llm

import (
	"log/slog"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/config"
)

// NewEnhancer builds the correction pass from cfg. It returns nil, nil
// when the pass is disabled.
func NewEnhancer(cfg *config.EnhanceConfig, logger *slog.Logger) (*cleaning.Enhancer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := New(Options{
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		APIKey:            cfg.APIKey,
		Timeout:           cfg.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})
	if err != nil {
		return nil, err
	}

	e := cleaning.NewEnhancer(NewCorrector(client), logger)
	if cfg.GroupSize > 0 {
		e.GroupSize = cfg.GroupSize
	}
	if cfg.Timeout > 0 {
		e.GroupTimeout = cfg.Timeout
	}
	logger.Info("language model correction enabled", "model", client.Model(), "group_size", e.GroupSize)
	return e, nil
}
