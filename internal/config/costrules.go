package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CostRuleSeed is one entry of the cost rule file.
type CostRuleSeed struct {
	Model       string `mapstructure:"model"`
	Category    string `mapstructure:"category"`
	Cost        int64  `mapstructure:"cost"`
	Active      *bool  `mapstructure:"active"`
	Description string `mapstructure:"description"`
}

// IsActive defaults to true when the file omits the flag.
func (s CostRuleSeed) IsActive() bool {
	return s.Active == nil || *s.Active
}

// CostRulesHolder keeps the last valid cost rule file in memory and notifies
// subscribers when the file changes on disk.
type CostRulesHolder struct {
	current atomic.Value // holds []CostRuleSeed
	path    string

	mu        sync.Mutex
	listeners []func([]CostRuleSeed)
}

// NewCostRulesHolder reads the cost rule file at path. An empty path yields an
// empty holder so the catalog can be managed purely through the admin API.
func NewCostRulesHolder(path string) (*CostRulesHolder, error) {
	holder := &CostRulesHolder{path: strings.TrimSpace(path)}
	holder.current.Store([]CostRuleSeed(nil))
	if holder.path == "" {
		return holder, nil
	}

	v := viper.New()
	v.SetConfigFile(holder.path)
	v.SetEnvPrefix("CREDITLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read cost rules %s: %w", holder.path, err)
	}

	rules, err := decodeCostRules(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(rules)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeCostRules(v)
		if err != nil {
			log.Printf("[cost-rules] invalid file ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[cost-rules] reloaded from %s", e.Name)
		holder.notify(updated)
	})

	return holder, nil
}

// Path returns the watched file, empty when seeding is disabled.
func (h *CostRulesHolder) Path() string {
	return h.path
}

// Get returns the last valid rule set.
func (h *CostRulesHolder) Get() []CostRuleSeed {
	rules, _ := h.current.Load().([]CostRuleSeed)
	return rules
}

// OnChange registers fn to run after every successful reload.
func (h *CostRulesHolder) OnChange(fn func([]CostRuleSeed)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

func (h *CostRulesHolder) notify(rules []CostRuleSeed) {
	h.mu.Lock()
	listeners := append([]func([]CostRuleSeed){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(rules)
	}
}

func decodeCostRules(v *viper.Viper) ([]CostRuleSeed, error) {
	var rules []CostRuleSeed
	if err := v.UnmarshalKey("rules", &rules); err != nil {
		return nil, err
	}
	if err := validateCostRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func validateCostRules(rules []CostRuleSeed) error {
	seen := make(map[string]struct{}, len(rules))
	for i, rule := range rules {
		model := strings.ToLower(strings.TrimSpace(rule.Model))
		category := strings.ToLower(strings.TrimSpace(rule.Category))
		if model == "" {
			return fmt.Errorf("rules[%d].model cannot be empty", i)
		}
		if category == "" {
			return fmt.Errorf("rules[%d].category cannot be empty", i)
		}
		if rule.Cost <= 0 {
			return fmt.Errorf("rules[%d].cost must be positive", i)
		}
		key := model + "|" + category
		if _, ok := seen[key]; ok {
			return errors.New("duplicate cost rule for " + model + "/" + category)
		}
		seen[key] = struct{}{}
	}
	return nil
}
