package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorCapabilities(t *testing.T) {
	require.True(t, ActorContext{Role: RoleOwner}.CanForceChange())
	require.False(t, ActorContext{Role: RoleAdmin}.CanForceChange())
	require.False(t, ActorContext{Role: RoleStaff}.CanForceChange())

	require.True(t, ActorContext{Role: RoleOwner}.CanVoid())
	require.True(t, ActorContext{Role: RoleAdmin}.CanVoid())
	require.False(t, ActorContext{Role: RoleStaff}.CanVoid())
}

func TestActorContextRoundTrip(t *testing.T) {
	actor := ActorContext{Role: RoleAdmin, WarehouseScope: "raw_material"}
	ctx := ContextWithActor(context.Background(), actor)
	require.Equal(t, actor, ActorFromContext(ctx))
}

func TestActorFromContextDefaultsToStaff(t *testing.T) {
	actor := ActorFromContext(context.Background())
	require.Equal(t, RoleStaff, actor.Role)
	require.Empty(t, actor.WarehouseScope)
}
