package utils

//run redis (store.backend=redis)
//docker run -p 6379:6379 -d redis

//run qdrant (cache.enabled=true)
//docker run -p 6333:6333 -p 6334:6334 -v qdrantData:/qdrant/storage qdrant/qdrant

//swagger init
//swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs
