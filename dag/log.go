package dag

import "github.com/mstonedag/node/logger"

var log, _ = logger.Get(logger.SubsystemTags.MANR)
