package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// disputePolicy is the YAML overlay for arbitration policy. Unset fields keep
// the values read from the environment.
type disputePolicy struct {
	MinDeposit          string   `yaml:"min_deposit"`
	LoserSlashBps       *int     `yaml:"loser_slash_bps"`
	Arbitrators         []string `yaml:"arbitrators"`
	ArbitratorSelection string   `yaml:"arbitrator_selection"`
	PanelSize           *int     `yaml:"panel_size"`
	Quorum              *int     `yaml:"quorum"`
	ResponseWindow      string   `yaml:"response_window"`
	MediationWindow     string   `yaml:"mediation_window"`
	ArbitrationWindow   string   `yaml:"arbitration_window"`
}

func (c *DisputeConfig) ApplyPolicyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read dispute policy")
	}

	var policy disputePolicy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return errors.Wrap(err, "parse dispute policy")
	}

	if policy.MinDeposit != "" {
		minDeposit, err := decimal.NewFromString(policy.MinDeposit)
		if err != nil {
			return errors.Wrap(err, "min_deposit")
		}
		c.MinDeposit = minDeposit
	}
	if policy.LoserSlashBps != nil {
		c.LoserSlashBps = *policy.LoserSlashBps
	}
	if len(policy.Arbitrators) > 0 {
		c.Arbitrators = policy.Arbitrators
	}
	if policy.ArbitratorSelection != "" {
		c.ArbitratorSelection = policy.ArbitratorSelection
	}
	if policy.PanelSize != nil {
		c.PanelSize = *policy.PanelSize
	}
	if policy.Quorum != nil {
		c.Quorum = *policy.Quorum
	}

	windows := []struct {
		raw    string
		target *time.Duration
		name   string
	}{
		{policy.ResponseWindow, &c.ResponseWindow, "response_window"},
		{policy.MediationWindow, &c.MediationWindow, "mediation_window"},
		{policy.ArbitrationWindow, &c.ArbitrationWindow, "arbitration_window"},
	}
	for _, w := range windows {
		if w.raw == "" {
			continue
		}
		d, err := time.ParseDuration(w.raw)
		if err != nil {
			return errors.Wrap(err, w.name)
		}
		*w.target = d
	}

	return c.Validate()
}

// Validate checks the arbitration policy is internally consistent.
func (c *DisputeConfig) Validate() error {
	switch {
	case c.LoserSlashBps < 0 || c.LoserSlashBps > 10000:
		return errors.Errorf("loser slash bps %d out of range", c.LoserSlashBps)
	case c.PanelSize < 1:
		return errors.Errorf("panel size must be positive")
	case c.Quorum < 1 || c.Quorum > c.PanelSize:
		return errors.Errorf("quorum %d must be within panel size %d", c.Quorum, c.PanelSize)
	case c.ArbitratorSelection != "round_robin" && c.ArbitratorSelection != "hash":
		return errors.Errorf("unknown arbitrator selection %q", c.ArbitratorSelection)
	case c.MinDeposit.IsNegative():
		return errors.Errorf("negative min deposit")
	}
	return nil
}
