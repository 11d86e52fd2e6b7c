package main

//go:generate swag init -g cmd/pulse/main.go -o docs

// @title           Pulse API
// @version         0.1.0
// @description     Crowd-sourced venue occupancy with LCB-compliant check-in admission.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
