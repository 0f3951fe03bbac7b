package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsPatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, "%acme%", containsPattern("acme"))
	assert.Equal(t, `%100\%%`, containsPattern("100%"))
	assert.Equal(t, `%a\_b%`, containsPattern("a_b"))
	assert.Equal(t, `%c:\\dir%`, containsPattern(`c:\dir`))
}

func TestPageNormalized(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: 10}, Page{}.normalized())
	assert.Equal(t, Page{Page: 3, Limit: 100}, Page{Page: 3, Limit: 500}.normalized())
	assert.Equal(t, 20, Page{Page: 3, Limit: 10}.offset())
	assert.Equal(t, Pagination{Page: 1, Limit: 10, Total: 21, Pages: 3}, newPagination(Page{Page: 1, Limit: 10}, 21))
}
