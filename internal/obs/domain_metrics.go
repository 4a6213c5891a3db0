package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// RuleMutationsTotal counts rule create/update/delete outcomes.
	RuleMutationsTotal *prometheus.CounterVec
	// CartEvaluationsTotal counts cart evaluation outcomes.
	CartEvaluationsTotal *prometheus.CounterVec
	// RuleApplicationsTotal counts single-rule application outcomes per family.
	RuleApplicationsTotal *prometheus.CounterVec
	// ActiveRules tracks the number of rules currently indexed per family.
	ActiveRules *prometheus.GaugeVec
	// ExpiredRulesSwept counts rules deactivated by the expiry worker.
	ExpiredRulesSwept prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RuleMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_mutations_total",
			Help:      "Count of rule mutation outcomes by operation and family.",
		}, []string{"op", "family", "result"})
		CartEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_evaluations_total",
			Help:      "Count of cart evaluation outcomes.",
		}, []string{"result"})
		RuleApplicationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_applications_total",
			Help:      "Count of single-rule application outcomes by family.",
		}, []string{"family", "result"})
		ActiveRules = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rules",
			Help:      "Number of rules currently active per family.",
		}, []string{"family"})
		ExpiredRulesSwept = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_rules_swept_total",
			Help:      "Number of rules deactivated by the expiry sweeper.",
		})

		mustRegisterCollector(reg, RuleMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RuleMutationsTotal = v
			}
		})
		mustRegisterCollector(reg, CartEvaluationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartEvaluationsTotal = v
			}
		})
		mustRegisterCollector(reg, RuleApplicationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RuleApplicationsTotal = v
			}
		})
		mustRegisterCollector(reg, ActiveRules, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.GaugeVec); ok {
				ActiveRules = v
			}
		})
		mustRegisterCollector(reg, ExpiredRulesSwept, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ExpiredRulesSwept = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
