package service

//go:generate mockgen -destination "mock_boundary_test.go" -package $GOPACKAGE -write_package_comment=false -source boundaries.go Allocator,Scanner,Journal
