package registry

import "github.com/docker/go-metrics"

var (
	fetchActions      metrics.LabeledTimer
	tokenFetches      metrics.Counter
	blobDownloadBytes metrics.Counter
)

func init() {
	ns := metrics.NewNamespace("provision", "registry", nil)
	fetchActions = ns.NewLabeledTimer("fetch_actions", "The number of seconds it takes to complete each registry fetch", "action")
	for _, a := range []string{"manifest", "blob"} {
		fetchActions.WithValues(a).Update(0)
	}
	tokenFetches = ns.NewCounter("token_fetches", "The total number of bearer tokens requested")
	blobDownloadBytes = ns.NewCounter("blob_download_bytes", "The total number of blob bytes written to disk")
	metrics.Register(ns)
}
