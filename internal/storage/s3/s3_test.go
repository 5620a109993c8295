package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockObjectAPI struct {
	mock.Mock
}

func (m *mockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockObjectAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func TestUploadBuildsPublicURL(t *testing.T) {
	api := new(mockObjectAPI)
	var body string
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "family-bucket" &&
			aws.ToString(in.ContentType) == "image/png" &&
			aws.ToInt64(in.ContentLength) == 3
	})).Run(func(args mock.Arguments) {
		raw, _ := io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
		body = string(raw)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	store := newStore(api, "family-bucket", "")
	object, err := store.Upload(context.Background(), []byte("png"), "family-image-beach.png", "image/png")
	require.NoError(t, err)

	assert.Equal(t, "png", body)
	assert.True(t, strings.HasSuffix(object.Key, "-family-image-beach.png"))
	assert.Equal(t, "https://family-bucket.s3.amazonaws.com/"+object.Key, object.URL)
	api.AssertExpectations(t)
}

func TestUploadHonoursPublicBaseURL(t *testing.T) {
	api := new(mockObjectAPI)
	api.On("PutObject", mock.Anything, mock.Anything).Return(&s3.PutObjectOutput{}, nil).Once()

	store := newStore(api, "family-bucket", "https://cdn.example.com/")
	object, err := store.Upload(context.Background(), []byte("x"), "a.png", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(object.URL, "https://cdn.example.com/"))
	assert.False(t, strings.HasPrefix(object.URL, "https://cdn.example.com//"))
}

func TestUploadWrapsErrors(t *testing.T) {
	api := new(mockObjectAPI)
	denied := errors.New("access denied")
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, denied).Once()

	_, err := newStore(api, "b", "").Upload(context.Background(), []byte("x"), "a.png", "image/png")
	assert.ErrorIs(t, err, denied)
}

func TestDelete(t *testing.T) {
	api := new(mockObjectAPI)
	api.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Bucket) == "b" && aws.ToString(in.Key) == "k"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	require.NoError(t, newStore(api, "b", "").Delete(context.Background(), "k"))
	api.AssertExpectations(t)
}
