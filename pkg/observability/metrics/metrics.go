package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	tasksClaimed    atomic.Int64
	tasksCompleted  atomic.Int64
	tasksFailed     atomic.Int64
	tasksSkipped    atomic.Int64
	tasksRetried    atomic.Int64
	imagesAccepted  atomic.Int64
	imagesRejected  atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	publishesSent   atomic.Int64
	publishesFailed atomic.Int64
)

func TaskClaimed()    { tasksClaimed.Add(1) }
func TaskCompleted()  { tasksCompleted.Add(1) }
func TaskFailed()     { tasksFailed.Add(1) }
func TaskSkipped()    { tasksSkipped.Add(1) }
func TaskRetried()    { tasksRetried.Add(1) }
func ImageAccepted()  { imagesAccepted.Add(1) }
func ImageRejected()  { imagesRejected.Add(1) }
func CacheHit()       { cacheHits.Add(1) }
func CacheMiss()      { cacheMisses.Add(1) }
func PublishSent()    { publishesSent.Add(1) }
func PublishFailed()  { publishesFailed.Add(1) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	counters := []struct {
		name, help string
		value      int64
	}{
		{"vows_pipeline_tasks_claimed_total", "Tasks claimed from the queue since process start.", tasksClaimed.Load()},
		{"vows_pipeline_tasks_completed_total", "Tasks completed successfully since process start.", tasksCompleted.Load()},
		{"vows_pipeline_tasks_failed_total", "Tasks terminally failed since process start.", tasksFailed.Load()},
		{"vows_pipeline_tasks_skipped_total", "Tasks skipped as duplicates since process start.", tasksSkipped.Load()},
		{"vows_pipeline_tasks_retried_total", "Task attempts rescheduled for retry since process start.", tasksRetried.Load()},
		{"vows_pipeline_images_accepted_total", "Candidate images accepted by the quality gate.", imagesAccepted.Load()},
		{"vows_pipeline_images_rejected_total", "Candidate images rejected by the quality gate.", imagesRejected.Load()},
		{"vows_pipeline_cache_hits_total", "Response cache hits.", cacheHits.Load()},
		{"vows_pipeline_cache_misses_total", "Response cache misses.", cacheMisses.Load()},
		{"vows_pipeline_publishes_sent_total", "Notification payloads delivered to a channel.", publishesSent.Load()},
		{"vows_pipeline_publishes_failed_total", "Notification deliveries that failed.", publishesFailed.Load()},
	}

	for _, c := range counters {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
		fmt.Fprintf(w, "%s %d\n", c.name, c.value)
	}
}
