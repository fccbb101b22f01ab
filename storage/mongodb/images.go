package mongodb

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

type imageDocument struct {
	Filename     string    `bson:"filename"`
	OriginalName string    `bson:"originalName"`
	MimeType     string    `bson:"mimeType"`
	Size         int64     `bson:"size"`
	Width        int       `bson:"width,omitempty"`
	Height       int       `bson:"height,omitempty"`
	UploadedAt   time.Time `bson:"uploadedAt"`
	Data         string    `bson:"data,omitempty"`
}

func (d imageDocument) image() content.Image {
	return content.Image{
		Filename:     d.Filename,
		OriginalName: d.OriginalName,
		MimeType:     d.MimeType,
		Size:         d.Size,
		Width:        d.Width,
		Height:       d.Height,
		UploadedAt:   d.UploadedAt.UTC(),
	}
}

// ImageStore is a storage.ImageStore over the images collection.
type ImageStore struct {
	coll *mongo.Collection
}

func (s *ImageStore) Save(ctx context.Context, img content.Image, data []byte) error {
	if err := storage.CheckName(img.Filename); err != nil {
		return err
	}
	doc := imageDocument{
		Filename:     img.Filename,
		OriginalName: img.OriginalName,
		MimeType:     img.MimeType,
		Size:         img.Size,
		Width:        img.Width,
		Height:       img.Height,
		UploadedAt:   img.UploadedAt.UTC(),
		Data:         base64.StdEncoding.EncodeToString(data),
	}
	_, err := s.coll.ReplaceOne(ctx,
		bson.D{{Key: "filename", Value: img.Filename}},
		doc,
		options.Replace().SetUpsert(true),
	)
	return wrap(err)
}

func (s *ImageStore) Get(ctx context.Context, filename string) (content.Image, []byte, error) {
	var doc imageDocument
	err := s.coll.FindOne(ctx, bson.D{{Key: "filename", Value: filename}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return content.Image{}, nil, storage.ErrNotFound
	}
	if err != nil {
		return content.Image{}, nil, wrap(err)
	}
	data, err := base64.StdEncoding.DecodeString(doc.Data)
	if err != nil {
		return content.Image{}, nil, err
	}
	return doc.image(), data, nil
}

func (s *ImageStore) Delete(ctx context.Context, filename string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "filename", Value: filename}})
	if err != nil {
		return wrap(err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *ImageStore) List(ctx context.Context) ([]content.Image, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().
		SetProjection(bson.D{{Key: "data", Value: 0}}).
		SetSort(bson.D{{Key: "uploadedAt", Value: -1}}))
	if err != nil {
		return nil, wrap(err)
	}
	var docs []imageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrap(err)
	}
	images := make([]content.Image, len(docs))
	for i, d := range docs {
		images[i] = d.image()
	}
	return images, nil
}
