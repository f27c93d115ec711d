// Package all registers every built-in backend with backend.DefaultRegistry.
package all

import (
	_ "github.com/hashicorp-forge/hermes-indexqueue/pkg/backend/algolia"
	_ "github.com/hashicorp-forge/hermes-indexqueue/pkg/backend/bleve"
	_ "github.com/hashicorp-forge/hermes-indexqueue/pkg/backend/kafka"
	_ "github.com/hashicorp-forge/hermes-indexqueue/pkg/backend/outbox"
	_ "github.com/hashicorp-forge/hermes-indexqueue/pkg/backend/recorder"
)
