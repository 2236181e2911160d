package shared

import (
	"fmt"
	"io"

	"github.com/peterldowns/pgdrift/logging"
	"github.com/peterldowns/pgdrift/shadow"
)

// Provisioner builds the shadow database provisioner selected by the config.
// The returned closer releases any client it holds.
func Provisioner(logger logging.Logger) (shadow.Provisioner, io.Closer, error) {
	cfg := State.Config.Shadow
	switch kind := State.ShadowProvisioner().Value(); kind {
	case ProvisionerDocker:
		p, err := shadow.NewDockerProvisioner(shadow.DockerConfig{
			Image:    State.ShadowImage().Value(),
			Port:     State.ShadowPort().Value(),
			User:     cfg.User,
			Password: cfg.Password,
			Database: cfg.Database,
		})
		if err != nil {
			return nil, nil, err
		}
		p.Logger = logger
		return p, p, nil
	case ProvisionerEmbedded:
		p := shadow.NewEmbeddedProvisioner(shadow.EmbeddedConfig{
			Port:     State.ShadowPort().Value(),
			User:     cfg.User,
			Password: cfg.Password,
			Database: cfg.Database,
		})
		p.Logger = logger
		return p, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown shadow provisioner: %s", kind)
	}
}

// Differ builds the diff backend selected by the config.
func Differ(logger logging.Logger) (shadow.Differ, io.Closer, error) {
	switch tool := State.DiffTool().Value(); tool {
	case DiffToolExec:
		return shadow.ExecDiffer{Path: State.DiffPath().Value(), Logger: logger}, nopCloser{}, nil
	case DiffToolDocker:
		d, err := shadow.NewDockerDiffer(State.DiffImage().Value())
		if err != nil {
			return nil, nil, err
		}
		d.Logger = logger
		return d, d, nil
	default:
		return nil, nil, fmt.Errorf("unknown diff tool: %s", tool)
	}
}

// ShadowSettings returns the orchestrator settings from the resolved config.
func ShadowSettings(baseline string) shadow.Config {
	return shadow.Config{
		PollInterval: State.PollInterval().Value(),
		PollAttempts: State.PollAttempts().Value(),
		Schema:       State.Schema().Value(),
		BaselinePath: baseline,
		TableName:    State.TableName().Value(),
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
