package notifier

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gdg-garage/club-booking-api/internal/apperr"
)

const DefaultTimeout = 10 * time.Second

// Dispatcher sends notifications in the background. Dispatch never blocks on
// the gateway and never reports its outcome to the caller.
type Dispatcher struct {
	gateway Gateway
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(gateway Gateway, timeout time.Duration) *Dispatcher {
	if gateway == nil {
		gateway = LogGateway{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{gateway: gateway, timeout: timeout}
}

// Dispatch schedules a message. A nil Dispatcher or empty recipient drops it.
func (d *Dispatcher) Dispatch(to, subject, body string) {
	if d == nil || to == "" {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.send(to, subject, body); err != nil {
			log.Printf("Failed to send notification %q to %s: %v", subject, to, err)
		}
	}()
}

func (d *Dispatcher) send(to, subject, body string) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = apperr.TransientNotification(fmt.Errorf("gateway panic: %v", r))
		}
	}()

	if err := d.gateway.Send(ctx, to, subject, body); err != nil {
		return apperr.TransientNotification(err)
	}
	return nil
}

// Wait blocks until every dispatched message has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
