package state

import (
	"fmt"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9a-zA-Z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func regexesValidator(what string, regexes []string) error {
	for _, re := range regexes {
		if _, err := regexp.Compile(re); err != nil {
			return fmt.Errorf("invalid %s regex %q: %w", what, re, err)
		}
	}
	return nil
}

func CentralConfigValidator(cfg *CentralCfg) error {
	if cfg.Domain == "" {
		return fmt.Errorf("domain must not be empty")
	}
	if len(cfg.Areas) == 0 {
		return fmt.Errorf("at least one area must be configured")
	}
	seen := make([]Area, 0, len(cfg.Areas))
	for _, area := range cfg.Areas {
		if err := NameValidator(string(area.Id)); err != nil {
			return err
		}
		if slices.Contains(seen, area.Id) {
			return fmt.Errorf("duplicate area id: %s", area.Id)
		}
		seen = append(seen, area.Id)
		if err := regexesValidator("area neighbor", area.NeighborRegexes); err != nil {
			return err
		}
		if err := regexesValidator("area interface", area.InterfaceRegexes); err != nil {
			return err
		}
	}
	if cfg.KvKeyTTL < 0 {
		return fmt.Errorf("kv_key_ttl must not be negative")
	}
	return nil
}

func NodeConfigValidator(node *LocalCfg) error {
	if err := NameValidator(string(node.Id)); err != nil {
		return err
	}
	if err := regexesValidator("include interface", node.IncludeInterfaceRegexes); err != nil {
		return err
	}
	if err := regexesValidator("exclude interface", node.ExcludeInterfaceRegexes); err != nil {
		return err
	}
	if err := regexesValidator("redistribute interface", node.RedistributeInterfaceRegexes); err != nil {
		return err
	}
	for _, p := range node.ExcludePrefixes {
		if !p.IsValid() {
			return fmt.Errorf("invalid exclude prefix: %s", p)
		}
	}
	if node.FlapInitialBackoff < 0 || node.FlapMaxBackoff < 0 {
		return fmt.Errorf("flap backoffs must not be negative")
	}
	if node.FlapMaxBackoff != 0 && node.FlapInitialBackoff > node.FlapMaxBackoff {
		return fmt.Errorf("flap_initial_backoff %s exceeds flap_max_backoff %s",
			node.FlapInitialBackoff, node.FlapMaxBackoff)
	}
	switch node.PrefixForwardingType {
	case "", "ip", "sr_mpls":
	default:
		return fmt.Errorf("unknown prefix_forwarding_type: %s", node.PrefixForwardingType)
	}
	switch node.PrefixForwardingAlgo {
	case "", "sp", "kspf":
	default:
		return fmt.Errorf("unknown prefix_forwarding_algo: %s", node.PrefixForwardingAlgo)
	}
	return nil
}
