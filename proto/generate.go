// Package classifierv1 contains the generated classifier service bindings.
package classifierv1

//go:generate protoc --go_out=. --go_opt=paths=source_relative --go-grpc_out=. --go-grpc_opt=paths=source_relative classifier.proto
