package photos

import (
	"context"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/kozaktomas/site-photos/internal/siteapi"
)

// BatchResult is the outcome of a best-effort batch. Failed items never
// cancel their siblings.
type BatchResult struct {
	Succeeded []string         `json:"succeeded"`
	Failed    map[string]error `json:"-"`
}

// Attempted returns the number of items a request was sent for.
func (r *BatchResult) Attempted() int {
	return len(r.Succeeded) + len(r.Failed)
}

// FailedIDs returns the failed ids in sorted order.
func (r *BatchResult) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// runBatch calls fn for each id with at most concurrency calls in flight and
// returns once every call has settled.
func (s *Session) runBatch(ctx context.Context, operation string, ids []string, fn func(context.Context, string) error) *BatchResult {
	errs := make([]error, len(ids))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			errs[i] = fn(ctx, id)
		}(i, id)
	}
	wg.Wait()

	result := &BatchResult{Succeeded: []string{}, Failed: map[string]error{}}
	for i, id := range ids {
		if errs[i] != nil {
			result.Failed[id] = errs[i]
			s.observer.ObserveBatchItem(operation, OutcomeError)
			s.logger.Warn("batch item failed",
				zap.String("operation", operation),
				zap.String("photo_id", id),
				zap.Error(errs[i]),
			)
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
		s.observer.ObserveBatchItem(operation, OutcomeSuccess)
	}
	return result
}

// cleanIDs drops empty and repeated ids, keeping the first occurrence.
func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// movableLocked returns the selected ids whose classification differs from
// target.
func (s *Session) movableLocked(target siteapi.Classification) []string {
	var ids []string
	for _, id := range s.selection.IDs() {
		if p, ok := s.store.Find(id); ok && p.Classification != target {
			ids = append(ids, id)
		}
	}
	return ids
}

// CanMove reports whether "move to target" is enabled: something is selected
// and at least one selected photo is not already classified as target.
func (s *Session) CanMove(target siteapi.Classification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movableLocked(target)) > 0
}

// MoveSelected moves the selected photos that are not already classified as
// target. It returns ErrNothingToMove when the action is disabled.
func (s *Session) MoveSelected(ctx context.Context, target siteapi.Classification) (*BatchResult, error) {
	s.mu.Lock()
	ids := s.movableLocked(target)
	s.mu.Unlock()

	if len(ids) == 0 {
		return nil, ErrNothingToMove
	}
	return s.Move(ctx, ids, target)
}

// Move sets the classification of every photo in ids, one request per
// photo. Photos on the held page that already carry target are skipped; ids
// not on the held page are always sent. Each failure is reported on its own,
// followed by one summary, and the current page is refetched once all
// requests have settled.
func (s *Session) Move(ctx context.Context, ids []string, target siteapi.Classification) (*BatchResult, error) {
	if !target.Valid() {
		return nil, ErrNothingToMove
	}
	s.mu.Lock()
	ids = slices.DeleteFunc(cleanIDs(ids), func(id string) bool {
		p, ok := s.store.Find(id)
		return ok && p.Classification == target
	})
	s.mu.Unlock()
	if len(ids) == 0 {
		return nil, ErrNothingToMove
	}

	result := s.runBatch(ctx, "move", ids, func(ctx context.Context, id string) error {
		return s.backend.UpdatePhotoClassification(ctx, id, target)
	})

	for _, id := range result.FailedIDs() {
		s.notifier.Notify(Notification{
			Level:   LevelError,
			Message: s.messages.Text("move_item_failed", id, rawMessage(result.Failed[id])),
		})
	}
	s.notifier.Notify(Notification{
		Level:   LevelSuccess,
		Message: s.messages.Text("move_success", len(result.Succeeded), result.Attempted(), s.messages.Text("classification_"+string(target))),
	})

	s.refetchAfterBatch(ctx)
	return result, nil
}

// DeleteSelected deletes the selected photos after confirmation.
func (s *Session) DeleteSelected(ctx context.Context, confirm Confirmer) (*BatchResult, error) {
	return s.Delete(ctx, s.Selected(), confirm)
}

// Delete asks for confirmation and then deletes every photo in ids, one
// request per photo. Declining returns ErrDeclined before any request is
// sent. Deleted photos are dropped from the held page, the selection is
// cleared and the current page is refetched.
func (s *Session) Delete(ctx context.Context, ids []string, confirm Confirmer) (*BatchResult, error) {
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNoSelection
	}
	if confirm == nil {
		return nil, ErrDeclined
	}

	ok, err := confirm.Confirm(ctx, s.messages.Text("delete_confirm", len(ids)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDeclined
	}

	result := s.runBatch(ctx, "delete", ids, s.backend.DeletePhoto)

	s.mu.Lock()
	s.store.remove(result.Succeeded)
	s.selection.Clear()
	s.mu.Unlock()

	for _, id := range result.FailedIDs() {
		s.notifier.Notify(Notification{
			Level:   LevelError,
			Message: s.messages.Text("delete_item_failed", id, rawMessage(result.Failed[id])),
		})
	}
	s.notifier.Notify(Notification{
		Level:   LevelSuccess,
		Message: s.messages.Text("delete_success", len(result.Succeeded), result.Attempted()),
	})

	s.refetchAfterBatch(ctx)
	return result, nil
}

// refetchAfterBatch reloads the current page. A failure is already in the
// error slot, so it is only logged.
func (s *Session) refetchAfterBatch(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
		s.logger.Warn("could not refresh photos after batch", zap.Error(err))
	}
}
