package provisioner

import "github.com/go-errors/errors"

var (
	ErrHotspotCreateFailed = errors.New("could not create hotspot")
	ErrPortalStartFailed   = errors.New("could not start portal")
	ErrTimedOut            = errors.New("provisioning timed out")
	ErrAttemptsExhausted   = errors.New("no attempt joined a network")
	ErrRollbackFailed      = errors.New("could not delete failed client connection")
	ErrCancelled           = errors.New("provisioning cancelled")
)
