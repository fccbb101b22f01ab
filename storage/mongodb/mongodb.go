// Package mongodb stores posts and images in MongoDB. Image bytes are kept
// base64-encoded alongside their metadata.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

const (
	postsCollection  = "posts"
	imagesCollection = "images"
)

// Store owns the client connection. Its Posts and Images views share it.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

// Connect dials uri, verifies the connection and ensures indexes exist.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetServerSelectionTimeout(5 * time.Second))
	if err != nil {
		return nil, wrap(err)
	}
	s := &Store{client: client, db: client.Database(database), now: time.Now}
	if err := s.Ping(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "dateSort", Value: -1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "published", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create post indexes: %w", wrap(err))
	}
	_, err = s.db.Collection(imagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "filename", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "uploadedAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create image indexes: %w", wrap(err))
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes the database. Tests use it to clean up.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

// Posts returns the post repository view of the store.
func (s *Store) Posts() *Repository {
	return &Repository{store: s, coll: s.db.Collection(postsCollection)}
}

// Images returns the image store view of the store.
func (s *Store) Images() *ImageStore {
	return &ImageStore{coll: s.db.Collection(imagesCollection)}
}

// wrap marks connectivity failures as storage.ErrUnavailable.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return err
}

// postDocument is the stored shape of a post. dateSort mirrors date as a
// time so ordering does not depend on how the date string was written.
type postDocument struct {
	ID          string    `bson:"id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Content     string    `bson:"content"`
	Date        string    `bson:"date"`
	DateSort    time.Time `bson:"dateSort"`
	Tags        []string  `bson:"tags"`
	Image       string    `bson:"image,omitempty"`
	Slug        string    `bson:"slug"`
	URL         string    `bson:"url,omitempty"`
	Published   bool      `bson:"published"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toDocument(p content.Post) postDocument {
	doc := postDocument{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Content:     p.Content,
		Date:        p.Date,
		Tags:        p.Tags,
		Image:       p.Image,
		Slug:        p.Slug,
		URL:         p.URL,
		Published:   p.Published,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if t, err := content.ParseDate(p.Date); err == nil {
		doc.DateSort = t.UTC()
	}
	return doc
}

func (d postDocument) post() content.Post {
	return content.Post{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Content:     d.Content,
		Date:        d.Date,
		Tags:        d.Tags,
		Image:       d.Image,
		Slug:        d.Slug,
		URL:         d.URL,
		Published:   d.Published,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// Repository is a storage.Repository over the posts collection.
type Repository struct {
	store *Store
	coll  *mongo.Collection
}

func (r *Repository) Create(ctx context.Context, p content.Post) (content.Post, error) {
	if _, err := r.coll.InsertOne(ctx, toDocument(p)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return content.Post{}, storage.ErrConflict
		}
		return content.Post{}, wrap(err)
	}
	return p, nil
}

func (r *Repository) Get(ctx context.Context, id string) (content.Post, error) {
	var doc postDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return content.Post{}, storage.ErrNotFound
	}
	if err != nil {
		return content.Post{}, wrap(err)
	}
	return doc.post(), nil
}

func (r *Repository) Update(ctx context.Context, id string, u content.PostUpdate) (content.Post, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return content.Post{}, err
	}
	doc := toDocument(u.Apply(current, r.store.now()))
	set := bson.D{
		{Key: "title", Value: doc.Title},
		{Key: "description", Value: doc.Description},
		{Key: "content", Value: doc.Content},
		{Key: "date", Value: doc.Date},
		{Key: "dateSort", Value: doc.DateSort},
		{Key: "tags", Value: doc.Tags},
		{Key: "image", Value: doc.Image},
		{Key: "slug", Value: doc.Slug},
		{Key: "url", Value: doc.URL},
		{Key: "published", Value: doc.Published},
		{Key: "updatedAt", Value: doc.UpdatedAt},
	}
	var updated postDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return content.Post{}, storage.ErrNotFound
	}
	if err != nil {
		return content.Post{}, wrap(err)
	}
	return updated.post(), nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "id", Value: id}})
	if err != nil {
		return wrap(err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var sortFields = map[string]string{
	storage.SortDate:      "dateSort",
	storage.SortTitle:     "title",
	storage.SortCreatedAt: "createdAt",
	storage.SortUpdatedAt: "updatedAt",
}

// filter translates the query's predicates into a MongoDB filter.
func filter(q storage.Query) bson.D {
	f := bson.D{}
	if q.Published != nil {
		f = append(f, bson.E{Key: "published", Value: *q.Published})
	}
	if q.Tag != "" {
		f = append(f, bson.E{Key: "tags", Value: bson.Regex{Pattern: "^" + regexp.QuoteMeta(q.Tag) + "$", Options: "i"}})
	}
	if q.Search != "" {
		re := bson.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		f = append(f, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: re}},
			bson.D{{Key: "description", Value: re}},
			bson.D{{Key: "tags", Value: re}},
		}})
	}
	return f
}

func (r *Repository) List(ctx context.Context, q storage.Query) (storage.Page, error) {
	q = q.Normalize()
	f := filter(q)
	total, err := r.coll.CountDocuments(ctx, f)
	if err != nil {
		return storage.Page{}, wrap(err)
	}

	dir := -1
	if q.SortOrder == "asc" {
		dir = 1
	}
	opts := options.Find().SetSort(bson.D{
		{Key: sortFields[q.SortBy], Value: dir},
		{Key: "id", Value: dir},
	})
	if q.SortBy == storage.SortTitle {
		opts.SetCollation(&options.Collation{Locale: "en", Strength: 2})
	}
	if q.Limit > 0 {
		opts.SetSkip(int64(q.Skip())).SetLimit(int64(q.Limit))
	}
	cur, err := r.coll.Find(ctx, f, opts)
	if err != nil {
		return storage.Page{}, wrap(err)
	}
	var docs []postDocument
	if err := cur.All(ctx, &docs); err != nil {
		return storage.Page{}, wrap(err)
	}
	posts := make([]content.Post, len(docs))
	for i, d := range docs {
		posts[i] = d.post()
	}
	return storage.NewPage(q, posts, int(total)), nil
}

// Close is a no-op; the owning Store closes the connection.
func (r *Repository) Close() error { return nil }

// Ping delegates to the owning Store.
func (r *Repository) Ping(ctx context.Context) error { return r.store.Ping(ctx) }
