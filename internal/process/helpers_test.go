package process

import "github.com/loykin/srvctl/internal/logger"

func loggerConfig(dir string) logger.Config { return logger.Config{Dir: dir} }
