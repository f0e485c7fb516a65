package overlay

// Lifecycle events published on the event bus.

type ModalShown struct {
	ID string
}

type ModalHidden struct {
	ID string
}

type ToastShown struct {
	ID string
}

type ToastHidden struct {
	ID string
}

// ContainerReplaced fires after the modal container received new content.
type ContainerReplaced struct {
	Generation uint64
}
