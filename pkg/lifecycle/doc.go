// Package lifecycle installs and activates a cache version.
//
// A version moves through Idle, Installing, Waiting, Activating and Active.
// Install precaches the static manifest into the version's static store and
// either completes fully or leaves no static store behind. Activate deletes
// every store that does not belong to the current version and then claims
// the connected clients.
//
// Example usage:
//
//	ctrl := lifecycle.New(manager, client, registry, lifecycle.Config{
//		Version:  "1.0.0",
//		Origin:   origin,
//		Manifest: lifecycle.DefaultManifest(),
//	})
//	if err := ctrl.Install(ctx); err != nil {
//		// retry later
//	}
//	deleted, err := ctrl.Activate(ctx)
package lifecycle
