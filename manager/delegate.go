package manager

import (
	"github.com/sirupsen/logrus"

	"github.com/srg/bluenode/internal/device"
	"github.com/srg/bluenode/internal/node"
)

// discoveryDelegate translates raw advertisement events into node list
// updates: repeat sightings refresh the known node in place, unseen addresses
// become new node records. A malformed advertisement from a single peer is
// swallowed (optionally logged) so it cannot abort the scan.
type discoveryDelegate struct {
	manager      *Manager
	showWarnings bool
	logger       *logrus.Logger
}

func newDelegate(m *Manager, showWarnings bool, logger *logrus.Logger) *discoveryDelegate {
	return &discoveryDelegate{
		manager:      m,
		showWarnings: showWarnings,
		logger:       logger,
	}
}

// handle processes one advertisement event from the driver.
func (d *discoveryDelegate) handle(adv device.Advertisement) {
	tag := adv.Addr()
	if tag == "" {
		d.warn("dropping advertisement without hardware address", nil)
		return
	}

	if existing := d.manager.NodeWithTag(tag); existing != nil {
		existing.Update(adv)
		return
	}

	n, err := node.New(adv, d.logger)
	if err != nil {
		d.warn("dropping malformed advertisement", logrus.Fields{"tag": tag, "error": err})
		return
	}

	d.manager.AddNode(n)
}

func (d *discoveryDelegate) warn(msg string, fields logrus.Fields) {
	if !d.showWarnings {
		return
	}
	if fields == nil {
		d.logger.Warn(msg)
		return
	}
	d.logger.WithFields(fields).Warn(msg)
}
