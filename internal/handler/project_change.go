package handler

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/realm"
	"github.com/NationalGenomicsInfrastructure/yggdrasil/internal/store"
)

// RealmFactory constructs a Realm for one resolved project document.
// Concrete realm packages (internal/realms/...) expose a constructor
// of this shape, pre-bound to their YggdrasilStore/HPC/submitter
// dependencies by the caller that wires up Core.
type RealmFactory func(projectDoc *store.ProjectDocument) realm.Realm

// ProjectChangeHandler is the built-in handler for event.ProjectChange
//: it validates the payload, resolves the realm factory for
// the event's module_location, instantiates it, checks its Proceed
// gate, and runs the project lifecycle template.
type ProjectChangeHandler struct {
	base
	factories map[string]RealmFactory
}

// NewProjectChangeHandler returns a ProjectChangeHandler dispatching
// to factories, keyed by realm module id (the registry's C6 output).
func NewProjectChangeHandler(factories map[string]RealmFactory) *ProjectChangeHandler {
	h := &ProjectChangeHandler{factories: factories}
	h.base.handleTask = h.handleTask
	return h
}

func (h *ProjectChangeHandler) handleTask(ctx context.Context, payload map[string]interface{}) {
	doc, ok := payload["document"].(*store.ProjectDocument)
	if !ok {
		logrus.Error("handler(ProjectChange): payload.document is not a project document, dropping")
		return
	}

	log := logrus.WithField("project_id", doc.ProjectID)

	location, ok := payload["module_location"].(string)
	if !ok {
		log.Error("handler(ProjectChange): payload.module_location is not a string, dropping")
		return
	}

	factory, ok := h.factories[location]
	if !ok {
		log.WithField("module_location", location).Error("handler(ProjectChange): no realm registered for module, dropping")
		return
	}

	r := factory(doc)
	if !r.Proceed() {
		log.Info("handler(ProjectChange): realm declined to proceed")
		return
	}

	if err := realm.LaunchTemplate(ctx, r); err != nil {
		log.WithError(err).Error("handler(ProjectChange): launch_template failed")
	}
}
