// Package grpc exposes the gateway's readiness over the standard
// grpc.health.v1.Health service, so orchestrators that speak gRPC health
// checks can probe the gateway without going through HTTP.
//
// # Usage
//
//	grpcServer := grpc.NewServer()
//	health := gaiagrpc.Register(grpcServer)
//	health.SetBackendUp(true)
//	lis, _ := net.Listen("tcp", ":9090")
//	grpcServer.Serve(lis)
package grpc
