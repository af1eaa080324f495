package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"

	"schedule-api/domain"
)

const (
	defaultQueueConcurrency = 8
	queuePerCPU             = 10
	maxQueueConcurrency     = 64
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// Storage provides access to the task table, the customer directory table
// and the calendar sync queue.
type Storage struct {
	taskTable        *aztables.Client
	customerTable    *aztables.Client
	syncQueue        queueClient
	queueConcurrency int
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, customersTable, syncQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	tt := svc.NewClient(tasksTable)
	ct := svc.NewClient(customersTable)
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	sq, err := azqueue.NewQueueClientFromConnectionString(connStr, syncQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:        tt,
		customerTable:    ct,
		syncQueue:        sq,
		queueConcurrency: queueConcurrencyForCPU(runtime.NumCPU()),
	}, nil
}

func queueConcurrencyForCPU(cpu int) int {
	if cpu <= 0 {
		return defaultQueueConcurrency
	}
	n := cpu * queuePerCPU
	if n > maxQueueConcurrency {
		return maxQueueConcurrency
	}
	return n
}

type notFoundError struct {
	id string
}

func (e notFoundError) Error() string { return fmt.Sprintf("item %q not found", e.id) }

// NotFound marks the error for the handler layer.
func (notFoundError) NotFound() {}

func mapEntityError(err error, id string) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return notFoundError{id: id}
	}
	return err
}

type taskEntity struct {
	aztables.Entity
	Title              string `json:"Title"`
	Kind               string `json:"Kind"`
	Date               string `json:"Date"`
	Time               string `json:"Time,omitempty"`
	DurationMinutes    int    `json:"DurationMinutes,omitempty"`
	LinkedCustomerID   string `json:"LinkedCustomerId,omitempty"`
	LinkedCustomerName string `json:"LinkedCustomerName,omitempty"`
	Notes              string `json:"Notes,omitempty"`
	// Pointer keeps column presence observable: tables provisioned before
	// the completed column simply lack the property.
	Completed *bool `json:"Completed,omitempty"`
}

func (e taskEntity) toItem() domain.ScheduledItem {
	return domain.ScheduledItem{
		ID:                 e.RowKey,
		Title:              e.Title,
		Kind:               e.Kind,
		Date:               e.Date,
		Time:               e.Time,
		DurationMinutes:    e.DurationMinutes,
		LinkedCustomerID:   e.LinkedCustomerID,
		LinkedCustomerName: e.LinkedCustomerName,
		Notes:              e.Notes,
		Completed:          e.Completed,
	}
}

func entityFromItem(userID string, item domain.ScheduledItem) taskEntity {
	return taskEntity{
		Entity:             aztables.Entity{PartitionKey: userID, RowKey: item.ID},
		Title:              item.Title,
		Kind:               item.Kind,
		Date:               item.Date,
		Time:               item.Time,
		DurationMinutes:    item.DurationMinutes,
		LinkedCustomerID:   item.LinkedCustomerID,
		LinkedCustomerName: item.LinkedCustomerName,
		Notes:              item.Notes,
		Completed:          item.Completed,
	}
}

// ListTasks retrieves all persisted items for the provided user in table
// order. Synthetic items never reach this table; they are derived upstream.
func (s *Storage) ListTasks(ctx context.Context, userID string) ([]domain.ScheduledItem, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	items := []domain.ScheduledItem{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			items = append(items, ent.toItem())
		}
	}
	return items, nil
}

// CreateTask persists a new item. The store assigns the id; any id on the
// input is ignored.
func (s *Storage) CreateTask(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error) {
	item.ID = uuid.NewString()
	data, err := json.Marshal(entityFromItem(userID, item))
	if err != nil {
		return domain.ScheduledItem{}, err
	}
	if _, err := s.taskTable.AddEntity(ctx, data, nil); err != nil {
		return domain.ScheduledItem{}, err
	}
	return item, nil
}

// UpdateTask replaces the stored item.
func (s *Storage) UpdateTask(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error) {
	data, err := json.Marshal(entityFromItem(userID, item))
	if err != nil {
		return domain.ScheduledItem{}, err
	}
	opts := &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeReplace}
	if _, err := s.taskTable.UpdateEntity(ctx, data, opts); err != nil {
		return domain.ScheduledItem{}, mapEntityError(err, item.ID)
	}
	return item, nil
}

// PatchTaskDate merges a new date onto the stored item, leaving every other
// column untouched. This is the reschedule mutation.
func (s *Storage) PatchTaskDate(ctx context.Context, userID, id, date string) error {
	return s.mergePatch(ctx, userID, id, map[string]any{"Date": date})
}

// PatchTaskCompletion merges the completed flag onto the stored item. Only
// called when the collection carries the native column.
func (s *Storage) PatchTaskCompletion(ctx context.Context, userID, id string, completed bool) error {
	return s.mergePatch(ctx, userID, id, map[string]any{"Completed": completed})
}

func (s *Storage) mergePatch(ctx context.Context, userID, id string, fields map[string]any) error {
	fields["PartitionKey"] = userID
	fields["RowKey"] = id
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	opts := &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeMerge}
	if _, err := s.taskTable.UpdateEntity(ctx, data, opts); err != nil {
		return mapEntityError(err, id)
	}
	return nil
}

// DeleteTask removes the stored item.
func (s *Storage) DeleteTask(ctx context.Context, userID, id string) error {
	if _, err := s.taskTable.DeleteEntity(ctx, userID, id, nil); err != nil {
		return mapEntityError(err, id)
	}
	return nil
}

type customerEntity struct {
	aztables.Entity
	Name        string `json:"Name"`
	DateOfBirth string `json:"DateOfBirth,omitempty"`
}

// ListCustomers retrieves the read-only customer directory for the user.
func (s *Storage) ListCustomers(ctx context.Context, userID string) ([]domain.Customer, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.customerTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	customers := []domain.Customer{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent customerEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			customers = append(customers, domain.Customer{
				ID:          ent.RowKey,
				Name:        ent.Name,
				DateOfBirth: ent.DateOfBirth,
			})
		}
	}
	return customers, nil
}

// EnqueueSyncEvents sends the given events to the calendar sync queue,
// fanning out up to queueConcurrency sends at a time. The first error wins;
// in-flight sends still run to completion.
func (s *Storage) EnqueueSyncEvents(ctx context.Context, userID string, events []domain.SyncEvent) error {
	if len(events) == 0 {
		return nil
	}
	concurrency := s.queueConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, ev := range events {
		env := domain.SyncEnvelope{UserID: userID, Event: ev}
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(payload string) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, qerr := s.syncQueue.EnqueueMessage(ctx, payload, nil); qerr != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = qerr
				}
				mu.Unlock()
			}
		}(string(data))
	}
	wg.Wait()
	return firstErr
}
