// Package fsstorage is the document backend: Cloud Firestore. Native ids
// are Firestore-generated document ids. Orders are filtered server-side by
// owner only; date conditions and sorting are applied in memory so no
// composite index has to exist.
package fsstorage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/driverbook/tripwage/internal/models"
	"github.com/driverbook/tripwage/internal/storage"
)

const (
	ordersCollection    = "orders"
	workTimesCollection = "workTimes"
	usersCollection     = "users"
)

type FSStorage struct {
	client *firestore.Client
}

func New(ctx context.Context, projectID, credentialsFile string) (*FSStorage, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FSStorage{client: client}, nil
}

func (fs *FSStorage) Close() error {
	return fs.client.Close()
}

// Stores exposes the backend through the common contract.
func (fs *FSStorage) Stores() storage.Stores {
	return storage.Stores{
		Orders:    &orderStore{client: fs.client},
		WorkTimes: &workTimeStore{client: fs.client},
		Users:     &userStore{client: fs.client},
	}
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

type orderStore struct {
	client *firestore.Client
}

func (s *orderStore) Create(ctx context.Context, order models.Order) (models.Order, error) {
	order.CreatedAt = models.NowISO()
	order.UpdatedAt = order.CreatedAt
	ref := s.client.Collection(ordersCollection).NewDoc()
	if _, err := ref.Set(ctx, order); err != nil {
		return models.Order{}, err
	}
	order.ID = ref.ID
	return order, nil
}

func (s *orderStore) FindByID(ctx context.Context, id string) (models.Order, error) {
	if id == "" {
		return models.Order{}, storage.ErrNotFound
	}
	doc, err := s.client.Collection(ordersCollection).Doc(id).Get(ctx)
	if notFound(err) {
		return models.Order{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	var order models.Order
	if err := doc.DataTo(&order); err != nil {
		return models.Order{}, err
	}
	order.ID = doc.Ref.ID
	return order, nil
}

func (s *orderStore) FindByUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.ownerOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortOrdersByDateDesc(orders)
	return orders, nil
}

func (s *orderStore) FindByUserAndDate(ctx context.Context, userID, date string) ([]models.Order, error) {
	iter := s.client.Collection(ordersCollection).
		Where("userId", "==", userID).
		Where("date", "==", date).
		Documents(ctx)
	return collectOrders(iter)
}

func (s *orderStore) FindByUserAndDateRange(ctx context.Context, userID, start, end string) ([]models.Order, error) {
	all, err := s.ownerOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	orders := all[:0]
	for _, o := range all {
		if o.Date >= start && o.Date <= end {
			orders = append(orders, o)
		}
	}
	sortOrdersByDateDesc(orders)
	return orders, nil
}

func (s *orderStore) Update(ctx context.Context, id string, upd models.OrderUpdate) (models.Order, error) {
	order, err := s.FindByID(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	upd.Apply(&order)
	order.UpdatedAt = models.NowISO()
	if _, err := s.client.Collection(ordersCollection).Doc(id).Set(ctx, order); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (s *orderStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	_, err := s.client.Collection(ordersCollection).Doc(id).Delete(ctx)
	return err
}

// ownerOrders fetches the user's whole collection; range filtering happens
// in the caller.
func (s *orderStore) ownerOrders(ctx context.Context, userID string) ([]models.Order, error) {
	iter := s.client.Collection(ordersCollection).
		Where("userId", "==", userID).
		Documents(ctx)
	return collectOrders(iter)
}

func collectOrders(iter *firestore.DocumentIterator) ([]models.Order, error) {
	defer iter.Stop()
	orders := make([]models.Order, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var o models.Order
		if err := doc.DataTo(&o); err != nil {
			return nil, err
		}
		o.ID = doc.Ref.ID
		orders = append(orders, o)
	}
	return orders, nil
}

func sortOrdersByDateDesc(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Date > orders[j].Date
	})
}

type workTimeStore struct {
	client *firestore.Client
}

// Work-time documents use the deterministic id {userId}_{date}, so the
// natural-key uniqueness is the document id itself and Save is a plain Set.
func workTimeDocID(userID, date string) string {
	return fmt.Sprintf("%s_%s", userID, date)
}

func (s *workTimeStore) Save(ctx context.Context, wt models.WorkTime) (models.WorkTime, error) {
	docID := workTimeDocID(wt.UserID, wt.Date)
	existing, err := s.FindByUserAndDate(ctx, wt.UserID, wt.Date)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		wt.CreatedAt = models.NowISO()
	case err != nil:
		return models.WorkTime{}, err
	default:
		wt.CreatedAt = existing.CreatedAt
	}
	wt.UpdatedAt = models.NowISO()
	if _, err := s.client.Collection(workTimesCollection).Doc(docID).Set(ctx, wt); err != nil {
		return models.WorkTime{}, err
	}
	wt.ID = docID
	return wt, nil
}

func (s *workTimeStore) FindByUserAndDate(ctx context.Context, userID, date string) (models.WorkTime, error) {
	doc, err := s.client.Collection(workTimesCollection).Doc(workTimeDocID(userID, date)).Get(ctx)
	if notFound(err) {
		return models.WorkTime{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkTime{}, err
	}
	var wt models.WorkTime
	if err := doc.DataTo(&wt); err != nil {
		return models.WorkTime{}, err
	}
	wt.ID = doc.Ref.ID
	return wt, nil
}

func (s *workTimeStore) FindByUser(ctx context.Context, userID string) ([]models.WorkTime, error) {
	iter := s.client.Collection(workTimesCollection).
		Where("userId", "==", userID).
		Documents(ctx)
	defer iter.Stop()

	workTimes := make([]models.WorkTime, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var wt models.WorkTime
		if err := doc.DataTo(&wt); err != nil {
			return nil, err
		}
		wt.ID = doc.Ref.ID
		workTimes = append(workTimes, wt)
	}
	sort.SliceStable(workTimes, func(i, j int) bool {
		return workTimes[i].Date > workTimes[j].Date
	})
	return workTimes, nil
}

type userStore struct {
	client *firestore.Client
}

func (s *userStore) Create(ctx context.Context, user models.User) (models.User, error) {
	_, err := s.FindByEmailOrUsername(ctx, user.Email, user.Username)
	if err == nil {
		return models.User{}, storage.ErrUserExists
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, err
	}

	user.CreatedAt = models.NowISO()
	user.UpdatedAt = user.CreatedAt
	ref := s.client.Collection(usersCollection).NewDoc()
	if _, err := ref.Set(ctx, user); err != nil {
		return models.User{}, err
	}
	user.ID = ref.ID
	return user, nil
}

func (s *userStore) FindByID(ctx context.Context, id string) (models.User, error) {
	if id == "" {
		return models.User{}, storage.ErrNotFound
	}
	doc, err := s.client.Collection(usersCollection).Doc(id).Get(ctx)
	if notFound(err) {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return userFromDoc(doc)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, "email", email)
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findOne(ctx, "username", username)
}

func (s *userStore) FindByEmailOrUsername(ctx context.Context, email, username string) (models.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, err
	}
	return s.FindByUsername(ctx, username)
}

func (s *userStore) Update(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	upd.Apply(&user)
	user.UpdatedAt = models.NowISO()
	if _, err := s.client.Collection(usersCollection).Doc(id).Set(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *userStore) findOne(ctx context.Context, field, value string) (models.User, error) {
	iter := s.client.Collection(usersCollection).
		Where(field, "==", value).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return userFromDoc(doc)
}

func userFromDoc(doc *firestore.DocumentSnapshot) (models.User, error) {
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return models.User{}, err
	}
	user.ID = doc.Ref.ID
	return user, nil
}
