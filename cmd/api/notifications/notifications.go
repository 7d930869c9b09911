package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/library-service/cmd/api/library"
)

type Ntfy struct {
	baseURL string
	enabled bool
	timeout time.Duration
	client  *http.Client
}

func NewNtfy(enableNotifications bool, notificationsTimeout time.Duration, notificationsBaseURL string) *Ntfy {
	return &Ntfy{
		baseURL: notificationsBaseURL,
		enabled: enableNotifications,
		timeout: notificationsTimeout,
		client:  &http.Client{},
	}
}

/* Tells the topic subscribers that a borrow just emptied a book's stock. */
func (ntf *Ntfy) StockDepleted(title string) error {
	return ntf.publish("Stock_depleted", fmt.Sprintf("Book out of stock:\nTitle: %s", title))
}

/* Tells the topic subscribers that the ledger and the stock counter disagree.
This one should never fire while the data is healthy. */
func (ntf *Ntfy) StockInconsistency(title string) error {
	return ntf.publish("Stock_inconsistency", fmt.Sprintf("Stock would exceed the original count:\nTitle: %s", title))
}

func (ntf *Ntfy) publish(topic, message string) error {
	if !ntf.enabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ntf.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ntf.baseURL+"/"+topic, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("error delivering message (%s) to topic (%s/%s): %w", message, ntf.baseURL, topic, err)
	}
	resp, err := ntf.client.Do(req)
	if err != nil {
		return fmt.Errorf("error delivering message (%s) to topic (%s/%s): %w", message, ntf.baseURL, topic, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return library.NewErrNotificationFailed(resp.StatusCode)
	}
	return nil
}
