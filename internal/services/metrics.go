package services

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_orders_created_total",
			Help: "Gateway orders created, by whether a purchase row was recorded.",
		},
		[]string{"with_ebook"},
	)

	verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_payment_verifications_total",
			Help: "Checkout and webhook settlement attempts by source and result.",
		},
		[]string{"source", "result"},
	)

	downloadsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "store_download_urls_issued_total",
			Help: "Signed download URLs issued to entitled users.",
		},
	)

	sweptRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_sweep_deleted_rows_total",
			Help: "Rows deleted by the housekeeping sweep, by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(ordersCreated, verifications, downloadsIssued, sweptRows)
}

// Verification results.
const (
	resultPaid              = "paid"
	resultAlreadyProcessed  = "already_processed"
	resultSignatureMismatch = "signature_mismatch"
	resultNotFound          = "not_found"
	resultInvalid           = "invalid"
	resultIgnored           = "ignored"
	resultDuplicatePayment  = "duplicate_payment"
)
