package config

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// NormalizedBankKey returns the cache key for the normalized question bank
func (r *CacheKeyStruct) NormalizedBankKey() string {
	return "bank:normalized"
}

var CacheKey = NewCacheKeyStruct()
