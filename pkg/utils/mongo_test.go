package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMongoConfig_Defaults(t *testing.T) {
	c := MongoConfig{URI: "mongodb://localhost:27017", Database: "callbridge"}.withDefaults()
	assert.Equal(t, uint64(50), c.MaxPoolSize)
	assert.Equal(t, 5*time.Minute, c.MaxConnIdleTime)
	assert.Equal(t, 10*time.Second, c.ConnectTimeout)
}

func TestOpenMongo_RequiresURIAndDatabase(t *testing.T) {
	_, _, err := OpenMongo(context.Background(), MongoConfig{Database: "callbridge"})
	assert.Error(t, err)

	_, _, err = OpenMongo(context.Background(), MongoConfig{URI: "mongodb://localhost:27017"})
	assert.Error(t, err)
}
