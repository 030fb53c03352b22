package avatar

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/pluralchat/pluralchat-server/pkg/models"
	"golang.org/x/sync/semaphore"
)

const (
	bulkMaxConcurrent = 16
	bulkMaxPerHost    = 4
)

// BulkReport counts per-file outcomes of a bulk run. Individual failures
// never abort the batch.
type BulkReport struct {
	Candidates int `json:"candidates"`
	Downloaded int `json:"downloaded"`
	Unchanged  int `json:"unchanged"`
	Blocked    int `json:"blocked"`
	Failed     int `json:"failed"`
}

// hostLimiter bounds concurrent connections per remote host.
type hostLimiter struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func (h *hostLimiter) get(host string) *semaphore.Weighted {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sems == nil {
		h.sems = make(map[string]*semaphore.Weighted)
	}
	sem, ok := h.sems[host]
	if !ok {
		sem = semaphore.NewWeighted(bulkMaxPerHost)
		h.sems[host] = sem
	}
	return sem
}

// SyncAll resolves avatars for every member whose reference is still a
// remote URL and has no local asset yet. Downloads run concurrently, bounded
// globally and per host; each file is processed independently and counted.
// Cancelling ctx stops dispatch; files already persisted stay consistent
// because every write is atomic.
func (p *Pipeline) SyncAll(ctx context.Context, members []*models.Member, progress func(done, total int)) BulkReport {
	var candidates []*models.Member
	for _, m := range members {
		if m.AvatarPath == nil || !IsRemote(*m.AvatarPath) {
			continue
		}
		// Members whose asset already exists stay candidates: EnsureLocal
		// skips the download and just rebinds the stored reference.
		candidates = append(candidates, m)
	}

	report := BulkReport{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return report
	}

	bulkClient := &http.Client{Timeout: bulkFetchTimeout}
	global := semaphore.NewWeighted(bulkMaxConcurrent)
	hosts := &hostLimiter{}

	var (
		mu   sync.Mutex
		done int
		wg   sync.WaitGroup
	)

	for _, m := range candidates {
		if err := global.Acquire(ctx, 1); err != nil {
			break // cancelled
		}
		wg.Add(1)
		go func(m *models.Member) {
			defer wg.Done()
			defer global.Release(1)

			host := ""
			if u, err := url.Parse(*m.AvatarPath); err == nil {
				host = u.Hostname()
			}
			hostSem := hosts.get(host)
			if err := hostSem.Acquire(ctx, 1); err != nil {
				return
			}
			defer hostSem.Release(1)

			fileCtx, cancel := context.WithTimeout(ctx, bulkFetchTimeout)
			defer cancel()

			res := p.ensureLocal(fileCtx, m, bulkClient)

			mu.Lock()
			switch res.Outcome {
			case OutcomeDownloaded:
				report.Downloaded++
			case OutcomeUnchanged:
				report.Unchanged++
			case OutcomeBlockedUnsafe:
				report.Blocked++
			case OutcomeFailed:
				report.Failed++
			}
			done++
			current := done
			mu.Unlock()

			if progress != nil {
				progress(current, len(candidates))
			}
		}(m)
	}

	wg.Wait()
	return report
}
