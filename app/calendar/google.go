package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleClient publishes events to a Google Calendar through a service
// account.
type GoogleClient struct {
	service    *gcal.Service
	calendarID string
	timezone   string
}

func NewGoogleClient(ctx context.Context, credentialsFile, calendarID, timezone string) (*GoogleClient, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(data, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account: %w", err)
	}

	client := config.Client(ctx)

	service, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar service: %w", err)
	}

	return &GoogleClient{
		service:    service,
		calendarID: calendarID,
		timezone:   timezone,
	}, nil
}

func (c *GoogleClient) Insert(ctx context.Context, event *Event) error {
	payload := &gcal.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
	}

	if event.FullDay {
		// All-day events use exclusive end dates.
		payload.Start = &gcal.EventDateTime{Date: event.Start.Format("2006-01-02")}
		payload.End = &gcal.EventDateTime{Date: event.End.AddDate(0, 0, 1).Format("2006-01-02")}
	} else {
		payload.Start = &gcal.EventDateTime{DateTime: event.Start.Format(time.RFC3339), TimeZone: c.timezone}
		payload.End = &gcal.EventDateTime{DateTime: event.End.Format(time.RFC3339), TimeZone: c.timezone}
	}

	_, err := c.service.Events.Insert(c.calendarID, payload).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", event.GUID, err)
	}

	return nil
}

// DryRunClient logs events instead of publishing them. Used when no
// service account is configured.
type DryRunClient struct{}

func NewDryRunClient() *DryRunClient {
	return &DryRunClient{}
}

func (c *DryRunClient) Insert(_ context.Context, event *Event) error {
	slog.Info("Dry run, event not published",
		"guid", event.GUID,
		"summary", event.Summary,
		"location", event.Location,
		"start", event.Start,
		"end", event.End,
		"full_day", event.FullDay)

	return nil
}
