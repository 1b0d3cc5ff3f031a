package batchimport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/logger"
)

var (
	// ErrSessionClosed is returned by every operation on a closed session.
	ErrSessionClosed = errors.New("import session is closed")
	// ErrNoItems is returned when uploading an empty batch.
	ErrNoItems = errors.New("no files selected")
	// ErrUnresolvedItems is returned when an item lacks an account or bank
	// format. No upload is attempted.
	ErrUnresolvedItems = errors.New("every file needs an account and a bank format")
	// ErrAllUploadsFailed is returned when no item could be previewed.
	ErrAllUploadsFailed = errors.New("no file could be parsed")
	// ErrNothingToSave is returned when no item is ready to save.
	ErrNothingToSave = errors.New("no previewed files to save")
	// ErrItemNotFound is returned for an out of range item index.
	ErrItemNotFound = errors.New("import item not found")
	// ErrItemBusy is returned when changing an item with a request in flight.
	ErrItemBusy = errors.New("import item is being processed")
	// ErrUnknownAccount is returned when selecting an account that was not
	// loaded with the session.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrInvalidBank is returned for an unsupported bank format.
	ErrInvalidBank = errors.New("unsupported bank format")
)

// Uploader parses a CSV file on the backend without saving it.
type Uploader interface {
	UploadCSV(ctx context.Context, accountID int64, fileName string, data []byte, bank domain.BankName) ([]domain.TransactionPreview, error)
}

// Saver persists previewed transactions of one file.
type Saver interface {
	SaveImportedTransactions(ctx context.Context, accountID int64, req domain.SaveTransactionRequest) (string, error)
}

// Archiver keeps a copy of an imported file.
type Archiver interface {
	ArchiveImport(ctx context.Context, fileName, hash string, data []byte) (string, error)
}

// userMessager is implemented by backend errors that carry a message for
// the user.
type userMessager interface {
	UserMessage(fallback string) string
}

func userMessage(err error, fallback string) string {
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage(fallback)
	}
	return fallback
}

// DefaultUploadConcurrency bounds the uploads in flight for one session.
const DefaultUploadConcurrency = 4

// Coordinator creates import sessions bound to the backend collaborators.
type Coordinator struct {
	uploader Uploader
	saver    Saver
	archiver Archiver

	UploadConcurrency int
}

// NewCoordinator creates a Coordinator. archiver may be nil.
func NewCoordinator(uploader Uploader, saver Saver, archiver Archiver) *Coordinator {
	return &Coordinator{
		uploader:          uploader,
		saver:             saver,
		archiver:          archiver,
		UploadConcurrency: DefaultUploadConcurrency,
	}
}

// NewSession starts an empty session over a fresh snapshot of the user's
// accounts.
func (c *Coordinator) NewSession(accounts []domain.Account) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		coord:     c,
		accounts:  append([]domain.Account(nil), accounts...),
		step:      StepSelect,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Session holds every piece of mutable state of one import. Closing it
// discards that state; responses that arrive afterwards are dropped.
type Session struct {
	ID        string
	CreatedAt time.Time

	coord    *Coordinator
	accounts []domain.Account

	mu     sync.Mutex
	items  []*Item
	step   Step
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Step      Step      `json:"step"`
	Items     []Item    `json:"items"`
	Closed    bool      `json:"closed"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{ID: s.ID, CreatedAt: s.CreatedAt, Step: s.step, Items: s.itemsLocked(), Closed: s.closed}
}

// Items returns a copy of every item in queue order.
func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

func (s *Session) itemsLocked() []Item {
	out := make([]Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.snapshot()
	}
	return out
}

// Step returns the workflow step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Accounts returns the account snapshot the session was opened with.
func (s *Session) Accounts() []domain.Account {
	return append([]domain.Account(nil), s.accounts...)
}

// AddFiles queues files, skipping names already queued. Each new item gets
// a detected bank format and, when exactly one account uses that format, a
// preselected account. It returns the names that were skipped.
func (s *Session) AddFiles(files []File) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	queued := make(map[string]bool, len(s.items))
	for _, it := range s.items {
		queued[it.FileName] = true
	}

	var skipped []string
	for _, f := range files {
		if queued[f.Name] {
			skipped = append(skipped, f.Name)
			continue
		}
		queued[f.Name] = true

		bank := DetectBank(f.Name)
		s.items = append(s.items, &Item{
			ID:        uuid.NewString(),
			FileName:  f.Name,
			Size:      len(f.Data),
			BankName:  bank,
			AccountID: ResolveAccount(s.accounts, bank),
			Status:    StatusPending,
			data:      f.Data,
		})
	}

	if s.step == StepDone {
		s.step = StepSelect
	}
	return skipped, nil
}

// SetAccount selects the account of item index. When the item has no bank
// format yet it takes the account's preferred one.
func (s *Session) SetAccount(index int, accountID int64) error {
	if err := s.SetSelection(index, accountID, nil); err != nil {
		return fmt.Errorf("SetAccount: %w", err)
	}
	return nil
}

// SetBank selects the bank format of item index.
func (s *Session) SetBank(index int, bank domain.BankName) error {
	if !bank.Valid() {
		return fmt.Errorf("SetBank: %q: %w", bank, ErrInvalidBank)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.editableLocked(index)
	if err != nil {
		return fmt.Errorf("SetBank: %w", err)
	}
	b := bank
	it.BankName = &b
	s.selectionChangedLocked(it)
	return nil
}

// SetSelection selects the account and, when bank is not nil, the bank format
// of item index in one step. Every argument is checked before the item is
// touched, so a rejected selection leaves the item and its previews as they
// were. Without an explicit bank an item lacking one takes the account's
// preferred format.
func (s *Session) SetSelection(index int, accountID int64, bank *domain.BankName) error {
	if bank != nil && !bank.Valid() {
		return fmt.Errorf("SetSelection: %q: %w", *bank, ErrInvalidBank)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.editableLocked(index)
	if err != nil {
		return fmt.Errorf("SetSelection: %w", err)
	}

	account := s.accountLocked(accountID)
	if account == nil {
		return fmt.Errorf("SetSelection: account %d: %w", accountID, ErrUnknownAccount)
	}

	id := accountID
	it.AccountID = &id
	switch {
	case bank != nil:
		b := *bank
		it.BankName = &b
	case it.BankName == nil && account.BankName != nil:
		b := *account.BankName
		it.BankName = &b
	}
	s.selectionChangedLocked(it)
	return nil
}

// selectionChangedLocked returns it to pending and leaves the preview step
// once no item is ready any more.
func (s *Session) selectionChangedLocked(it *Item) {
	it.resetForUpload()
	s.settleStepLocked()
}

func (s *Session) settleStepLocked() {
	if s.step == StepPreview && s.countLocked(StatusReady) == 0 {
		s.step = StepSelect
	}
}

func (s *Session) accountLocked(id int64) *domain.Account {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return &s.accounts[i]
		}
	}
	return nil
}

// RemoveItem drops item index from the batch.
func (s *Session) RemoveItem(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.editableLocked(index); err != nil {
		return err
	}
	s.items = append(s.items[:index], s.items[index+1:]...)
	s.settleStepLocked()
	return nil
}

// Close discards the session. In-flight requests are canceled and their
// results ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.items = nil
	s.cancel()
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) editableLocked(index int) (*Item, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if index < 0 || index >= len(s.items) {
		return nil, fmt.Errorf("item %d: %w", index, ErrItemNotFound)
	}
	it := s.items[index]
	if it.Status.Busy() {
		return nil, fmt.Errorf("item %d: %w", index, ErrItemBusy)
	}
	return it, nil
}

func (s *Session) findLocked(id string) *Item {
	for _, it := range s.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func (s *Session) countLocked(status Status) int {
	n := 0
	for _, it := range s.items {
		if it.Status == status {
			n++
		}
	}
	return n
}

// UploadResult summarizes an upload pass. Interrupted items were put back
// to pending because the pass was canceled before their response arrived.
type UploadResult struct {
	Uploaded    int `json:"uploaded"`
	Failed      int `json:"failed"`
	Interrupted int `json:"interrupted"`
}

type uploadJob struct {
	id        string
	fileName  string
	accountID int64
	bank      domain.BankName
	data      []byte
}

// UploadAndPreview uploads every pending or failed item concurrently. Every
// item must be resolved first; otherwise nothing is uploaded. Each outcome
// is recorded on its own item. The session moves to the preview step when at
// least one item is ready.
func (s *Session) UploadAndPreview(ctx context.Context) (UploadResult, error) {
	log := logger.FromContext(ctx).With().Str("session_id", s.ID).Logger()

	jobs, err := s.beginUpload()
	if err != nil {
		return UploadResult{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	var (
		mu     sync.Mutex
		result UploadResult
	)

	g := new(errgroup.Group)
	g.SetLimit(s.coord.uploadConcurrency())
	for _, job := range jobs {
		g.Go(func() error {
			previews, err := s.coord.uploader.UploadCSV(ctx, job.accountID, job.fileName, job.data, job.bank)
			interrupted := err != nil && ctx.Err() != nil
			switch {
			case interrupted:
				log.Info().Str("item_id", job.id).Str("file_name", job.fileName).Msg("Upload interrupted")
			case err != nil:
				log.Warn().Err(err).Str("item_id", job.id).Str("file_name", job.fileName).Msg("Upload failed")
			default:
				log.Info().Str("item_id", job.id).Str("file_name", job.fileName).Int("rows", len(previews)).Msg("File previewed")
			}

			if s.recordUpload(job.id, previews, err, interrupted) {
				mu.Lock()
				switch {
				case interrupted:
					result.Interrupted++
				case err != nil:
					result.Failed++
				default:
					result.Uploaded++
				}
				mu.Unlock()
			}
			// A failed item never cancels its siblings.
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		log.Info().Msg("Session closed during upload, results discarded")
		return result, ErrSessionClosed
	}
	if result.Interrupted > 0 {
		if s.countLocked(StatusReady) > 0 {
			s.step = StepPreview
		}
		return result, fmt.Errorf("UploadAndPreview: %w", ctx.Err())
	}
	if s.countLocked(StatusReady) == 0 {
		return result, ErrAllUploadsFailed
	}
	s.step = StepPreview
	return result, nil
}

func (s *Session) beginUpload() ([]uploadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if len(s.items) == 0 {
		return nil, ErrNoItems
	}

	var unresolved []string
	for _, it := range s.items {
		if !it.Resolved() {
			unresolved = append(unresolved, it.FileName)
		}
	}
	if len(unresolved) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvedItems, unresolved)
	}

	var jobs []uploadJob
	for _, it := range s.items {
		if it.Status != StatusPending && it.Status != StatusError {
			continue
		}
		it.Status = StatusUploading
		it.Error = ""
		it.Previews = nil
		jobs = append(jobs, uploadJob{
			id:        it.ID,
			fileName:  it.FileName,
			accountID: *it.AccountID,
			bank:      *it.BankName,
			data:      it.data,
		})
	}
	return jobs, nil
}

// recordUpload stores an upload outcome. An interrupted upload returns the
// item to pending with its selections so the next pass retries it. It
// reports false when the session was closed or the item removed in the
// meantime.
func (s *Session) recordUpload(id string, previews []domain.TransactionPreview, err error, interrupted bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	it := s.findLocked(id)
	if it == nil {
		return false
	}
	switch {
	case interrupted:
		it.Status = StatusPending
		it.Error = ""
		return true
	case err != nil:
		it.Status = StatusError
		it.Error = userMessage(err, uploadFailedMessage)
		return true
	}
	it.Status = StatusReady
	it.Previews = previews
	return true
}

// SaveResult summarizes a save pass.
type SaveResult struct {
	Saved  int `json:"saved"`
	Failed int `json:"failed"`
}

// SaveTransactions saves every ready item one after another. A failed item
// keeps its selections and error; the remaining items are still attempted.
// The session is done only when every item saved.
func (s *Session) SaveTransactions(ctx context.Context) (SaveResult, error) {
	log := logger.FromContext(ctx).With().Str("session_id", s.ID).Logger()

	ids, err := s.readyIDs()
	if err != nil {
		return SaveResult{}, err
	}

	var result SaveResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("SaveTransactions: %w", err)
		}

		it, ok := s.beginSave(id)
		if !ok {
			if s.Closed() {
				return result, ErrSessionClosed
			}
			continue
		}

		hash := FileHash(it.data)
		req := domain.SaveTransactionRequest{
			Transactions: formData(*it.AccountID, it.Previews),
			FileName:     it.FileName,
			FileHash:     hash,
		}

		message, err := s.coord.saver.SaveImportedTransactions(ctx, *it.AccountID, req)
		if err != nil {
			log.Warn().Err(err).Str("item_id", id).Str("file_name", it.FileName).Msg("Save failed")
			if !s.finishSave(id, "", "", err) {
				return result, ErrSessionClosed
			}
			result.Failed++
			continue
		}

		log.Info().Str("item_id", id).Str("file_name", it.FileName).Int("rows", len(req.Transactions)).Msg("File saved")

		var uri string
		if s.coord.archiver != nil {
			uri, err = s.coord.archiver.ArchiveImport(ctx, it.FileName, hash, it.data)
			if err != nil {
				log.Warn().Err(err).Str("item_id", id).Msg("Failed to archive imported file")
			}
		}

		if !s.finishSave(id, message, uri, nil) {
			return result, ErrSessionClosed
		}
		result.Saved++
	}

	s.mu.Lock()
	if !s.closed && result.Failed == 0 && s.countLocked(StatusReady) == 0 {
		s.step = StepDone
	}
	s.mu.Unlock()

	return result, nil
}

func (s *Session) readyIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	var ids []string
	for _, it := range s.items {
		if it.Status == StatusReady {
			ids = append(ids, it.ID)
		}
	}
	if len(ids) == 0 {
		return nil, ErrNothingToSave
	}
	return ids, nil
}

func (s *Session) beginSave(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Item{}, false
	}
	it := s.findLocked(id)
	if it == nil || it.Status != StatusReady {
		return Item{}, false
	}
	it.Status = StatusSaving
	cp := it.snapshot()
	cp.data = it.data
	return cp, true
}

func (s *Session) finishSave(id, message, uri string, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	it := s.findLocked(id)
	if it == nil {
		return true
	}
	if err != nil {
		it.Status = StatusError
		it.Error = userMessage(err, saveFailedMessage)
		return true
	}
	it.Status = StatusSuccess
	it.Message = message
	it.ArchiveURI = uri
	return true
}

// formData converts previews into transactions of accountID. Amounts are
// sent as absolute values; the type carries the direction.
func formData(accountID int64, previews []domain.TransactionPreview) []domain.TransactionFormData {
	out := make([]domain.TransactionFormData, len(previews))
	for i, p := range previews {
		out[i] = domain.TransactionFormData{
			Date:         p.Date,
			Type:         p.Type,
			AccountID:    accountID,
			Amount:       p.Amount.Abs(),
			Description:  p.Description,
			VendorName:   domain.StringValue(p.VendorName),
			CategoryName: domain.StringValue(p.SuggestedCategory),
		}
	}
	return out
}

func (c *Coordinator) uploadConcurrency() int {
	if c.UploadConcurrency <= 0 {
		return DefaultUploadConcurrency
	}
	return c.UploadConcurrency
}
