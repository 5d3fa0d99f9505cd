package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tclemos/vault-bench/integration"
	"gopkg.in/yaml.v3"
)

func newInfraCmd(a *app) *cobra.Command {
	infraCmd := &cobra.Command{
		Use:   "infra",
		Short: "Inspect the shared infrastructure policies",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show adapter health, capabilities and policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.infraStatus(cmd)
		},
	}
	statusCmd.Flags().String("policy", "", "YAML policy file (defaults are used when empty)")
	infraCmd.AddCommand(statusCmd)
	return infraCmd
}

type infraStatus struct {
	Name         string                   `json:"name"`
	Version      string                   `json:"version"`
	Health       integration.Health       `json:"health"`
	Capabilities integration.Capabilities `json:"capabilities"`
	Policies     integration.PolicySet    `json:"policies"`
}

func (a *app) infraStatus(cmd *cobra.Command) error {
	ctx := cmd.Context()

	opts := []integration.Option{integration.WithLogger(a.log)}
	if path := a.v.GetString("policy"); path != "" {
		opts = append(opts, integration.WithSource(integration.FileSource{Path: path}))
	}
	adapter := integration.NewInfraAdapter(integration.DefaultInfraConfig(), opts...)
	if err := adapter.Initialize(ctx); err != nil {
		return classifyPolicyErr(err)
	}
	defer adapter.Shutdown(ctx)

	// the policy's log level applies unless one was given explicitly
	if !a.v.IsSet("log-level") {
		a.log = a.log.Level(adapter.LoggingConfig().ZerologLevel())
	}

	health, err := adapter.HealthCheck(ctx)
	if err != nil {
		return err
	}
	st := infraStatus{
		Name:         adapter.Name(),
		Version:      adapter.Version(),
		Health:       health,
		Capabilities: adapter.Capabilities(),
		Policies:     adapter.Policies(),
	}
	a.log.Debug().Bool("healthy", health.Healthy).Msg("Infra adapter status")

	if a.format == FormatJSON {
		return writeJSON(a.out, st)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Adapter: %s v%s\n", st.Name, st.Version)
	state := "unhealthy"
	if health.Healthy {
		state = "healthy"
	}
	fmt.Fprintf(&b, "Health:  %s (%s)\n\n", state, health.Message)

	b.WriteString("Capabilities:\n")
	for _, c := range []struct {
		name string
		on   bool
	}{
		{"config", st.Capabilities.Config},
		{"logging", st.Capabilities.Logging},
		{"tracing", st.Capabilities.Tracing},
		{"caching", st.Capabilities.Caching},
		{"retry", st.Capabilities.Retry},
		{"rate_limiting", st.Capabilities.RateLimiting},
	} {
		fmt.Fprintf(&b, "  %-15s %t\n", c.name, c.on)
	}

	policies, err := yaml.Marshal(st.Policies)
	if err != nil {
		return serializationErr(err)
	}
	b.WriteString("\nPolicies:\n")
	for _, line := range strings.Split(strings.TrimRight(string(policies), "\n"), "\n") {
		b.WriteString("  " + line + "\n")
	}

	if _, err := fmt.Fprint(a.out, b.String()); err != nil {
		return ioErr(err)
	}
	return nil
}

// classifyPolicyErr separates unreadable, unparseable and invalid policy files
func classifyPolicyErr(err error) error {
	var malformed *integration.MalformedPolicyError
	if errors.As(err, &malformed) {
		return serializationErr(err)
	}
	return classify(err)
}
