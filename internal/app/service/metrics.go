package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var recordsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "paceman_records_total",
	Help: "Records processed, by classification verdict",
}, []string{"verdict"})

var guildActionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "paceman_guild_actions_total",
	Help: "Per-guild routing outcomes",
}, []string{"action", "reason"})

var sinkFailuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "paceman_sink_failures_total",
	Help: "Failed calls to the messaging sink or collaborators",
}, []string{"op"})

var inflightGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "paceman_records_inflight",
	Help: "Records currently being routed",
})
