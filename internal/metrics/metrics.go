// Package metrics exposes prometheus counters for the bot. They are served
// by the keep-alive HTTP listener under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts handled commands and button interactions by name.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildbank",
		Name:      "commands_total",
		Help:      "Commands and interactions handled, by command name.",
	}, []string{"command"})

	// CommandErrorsTotal counts commands that ended in a user-visible error.
	CommandErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guildbank",
		Name:      "command_errors_total",
		Help:      "Commands that failed, by command name.",
	}, []string{"command"})

	// SplitsFinalized counts finalized split sessions.
	SplitsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guildbank",
		Name:      "splits_finalized_total",
		Help:      "Split sessions finalized.",
	})

	// SilverCredited sums silver credited through split payouts.
	SilverCredited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guildbank",
		Name:      "silver_credited_total",
		Help:      "Silver credited to member balances by split payouts.",
	})

	// SilverDebited sums silver debited through manual payouts.
	SilverDebited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "guildbank",
		Name:      "silver_debited_total",
		Help:      "Silver debited from member balances by manual payouts.",
	})
)
