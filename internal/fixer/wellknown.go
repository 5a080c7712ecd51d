package fixer

// wellKnownImports maps bare names that commonly appear undefined in
// test suites to the import statement that provides them. Keys are
// lowercase.
var wellKnownImports = map[string]string{
	"pytest":   "import pytest",
	"unittest": "import unittest",
	"os":       "import os",
	"sys":      "import sys",
	"json":     "import json",
	"time":     "import time",
	"re":       "import re",
	"math":     "import math",
	"random":   "import random",
	"datetime": "from datetime import datetime",
	"path":     "from pathlib import Path",
	"mock":     "from unittest import mock",
}
