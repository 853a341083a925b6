package portal

import (
	"context"
	"sync"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wificonnect/network"
)

var (
	ErrUnknownSsid  = errors.New("ssid is not in the latest scan")
	ErrNotAccepting = errors.New("no credentials are accepted at the moment")
)

// Submission is a set of credentials entered through the portal
type Submission struct {
	Ssid     string
	Password string
}

// Store is shared between the portal handlers and the provisioner. It
// holds the latest scan and at most one pending submission per hotspot cycle.
type Store struct {
	scanMu     sync.Mutex
	latestScan []*network.AccessPoint

	submissionMu sync.Mutex
	pending      *Submission
	accepting    bool
	// signals a new pending submission to Wait
	submitted chan struct{}
}

func NewStore() *Store {
	return &Store{
		accepting: true,
		submitted: make(chan struct{}, 1),
	}
}

func (s *Store) LatestScan() []*network.AccessPoint {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	return append([]*network.AccessPoint(nil), s.latestScan...)
}

func (s *Store) SetScan(aps []*network.AccessPoint) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	s.latestScan = append([]*network.AccessPoint(nil), aps...)
}

func (s *Store) inLatestScan(ssid string) bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	for _, ap := range s.latestScan {
		if ap.Ssid == ssid {
			return true
		}
	}

	return false
}

// Submit stores credentials for the network with the given SSID, which has
// to be part of the latest scan.
func (s *Store) Submit(submission *Submission) error {
	if submission == nil || submission.Ssid == "" || !s.inLatestScan(submission.Ssid) {
		return ErrUnknownSsid
	}

	s.submissionMu.Lock()
	defer s.submissionMu.Unlock()

	if !s.accepting || s.pending != nil {
		return ErrNotAccepting
	}

	copied := *submission
	s.pending = &copied

	select {
	case s.submitted <- struct{}{}:
	default:
	}

	return nil
}

// Pending reports whether a submission is waiting to be taken
func (s *Store) Pending() bool {
	s.submissionMu.Lock()
	defer s.submissionMu.Unlock()

	return s.pending != nil
}

// Wait blocks until a submission arrives and takes it. No further
// submissions are accepted until the next Reset, also when ctx is done
// first, in which case nothing is taken.
func (s *Store) Wait(ctx context.Context) (*Submission, error) {
	for {
		if submission := s.take(); submission != nil {
			return submission, nil
		}

		select {
		case <-s.submitted:
		case <-ctx.Done():
			s.Close()
			return nil, ctx.Err()
		}
	}
}

func (s *Store) take() *Submission {
	s.submissionMu.Lock()
	defer s.submissionMu.Unlock()

	submission := s.pending
	if submission != nil {
		s.pending = nil
		s.accepting = false
	}

	return submission
}

// Close stops accepting submissions and drops a pending one
func (s *Store) Close() {
	s.submissionMu.Lock()
	defer s.submissionMu.Unlock()

	s.pending = nil
	s.accepting = false
}

// Reset prepares the store for a new hotspot cycle
func (s *Store) Reset() {
	s.SetScan(nil)

	s.submissionMu.Lock()
	defer s.submissionMu.Unlock()

	s.pending = nil
	s.accepting = true

	select {
	case <-s.submitted:
	default:
	}
}
