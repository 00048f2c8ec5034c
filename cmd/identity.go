package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/spf13/cobra"
)

// identityFlags lets local commands act as an account or a guest session.
type identityFlags struct {
	account string
	guest   string
	admin   bool
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.account, "account", "", "act as this account id")
	cmd.Flags().StringVar(&f.guest, "guest", "", "act as this guest session id (guest_...)")
	cmd.Flags().BoolVar(&f.admin, "admin", false, "act with the admin role")
}

func (f *identityFlags) identity() (model.Identity, error) {
	if f.account != "" && f.guest != "" {
		return model.Identity{}, fmt.Errorf("use only one of --account or --guest")
	}
	if f.guest != "" && !model.IsGuestToken(f.guest) {
		return model.Identity{}, fmt.Errorf("guest session ids start with %q", model.GuestTokenPrefix)
	}
	id := model.Identity{AccountID: f.account, GuestSessionID: f.guest}
	switch {
	case f.admin:
		id.Role = model.RoleAdmin
	case f.account != "":
		id.Role = model.RoleUser
	case f.guest != "":
		id.Role = model.RoleGuest
	}
	return id, nil
}

// chartFlags collect a chart configuration from the command line.
type chartFlags struct {
	chart string
	start string
	end   string
	roles []string
}

func (f *chartFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.chart, "chart", "", "chart type (bar, line, pie, scatter, ...)")
	cmd.Flags().StringVar(&f.start, "start", "", "first row, 1-based")
	cmd.Flags().StringVar(&f.end, "end", "", "last row, inclusive")
	cmd.Flags().StringArrayVar(&f.roles, "role", nil, "column role as key=column (repeatable)")
}

// config returns only the values that were provided.
func (f *chartFlags) config() (model.Config, error) {
	cfg := model.Config{}
	if f.chart != "" {
		cfg[model.KeyChartType] = f.chart
	}
	if f.start != "" {
		cfg[model.KeyStartRow] = f.start
	}
	if f.end != "" {
		cfg[model.KeyEndRow] = f.end
	}
	roles, err := parseRoles(f.roles)
	if err != nil {
		return nil, err
	}
	for k, v := range roles {
		cfg[k] = v
	}
	return cfg, nil
}

func parseRoles(entries []string) (model.Config, error) {
	out := model.Config{}
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --role %q (want key=column)", e)
		}
		if model.IsReserved(k) {
			return nil, fmt.Errorf("--role cannot set %q; use --chart, --start or --end", k)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
